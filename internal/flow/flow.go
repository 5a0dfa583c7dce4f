package flow

import (
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
)

type Input int

const (
	InputText    Input = iota // free text through Validate
	InputChoice               // one of Options
	InputPhotos               // repeated photos, then done or skip
	InputComment              // terminal: finalize command or raw text
)

type Option struct {
	ID      string // callback id, e.g. "type_repair"
	TextKey string // label key in bot_config
	Default string // label when TextKey is not configured
}

func (o Option) Label(snap settings.Snapshot) string {
	return snap.TextOr(o.TextKey, o.Default)
}

// Def describes one step.
type Def struct {
	Step          Step
	Field         string // durable field; empty when the answer lives in session scratch
	Input         Input
	Prompt        string // text key
	PromptDefault string
	Options       []Option
	Validate      Validator
	// Optional steps are part of the plan only when step_extra_enabled was on
	// at flow entry.
	Optional bool
}

func (d Def) PromptText(snap settings.Snapshot) string {
	return snap.TextOr(d.Prompt, d.PromptDefault)
}

func (d Def) Option(id string) (Option, bool) {
	for _, o := range d.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

type Flow struct {
	Kind  orders.FlowKind
	Title string
	steps []Def
}

// Plan is the ordered step list for one run of the flow.
func (f *Flow) Plan(extra bool) []Def {
	out := make([]Def, 0, len(f.steps))
	for _, d := range f.steps {
		if d.Optional && !extra {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (f *Flow) First() Def { return f.steps[0] }

func (f *Flow) Terminal() Def { return f.steps[len(f.steps)-1] }

func (f *Flow) Def(s Step) (Def, bool) {
	for _, d := range f.steps {
		if d.Step == s {
			return d, true
		}
	}
	return Def{}, false
}

// Next returns the step after s in the plan. ok is false for the terminal step
// and for steps not in the plan.
func (f *Flow) Next(s Step, extra bool) (Def, bool) {
	plan := f.Plan(extra)
	for i, d := range plan {
		if d.Step == s && i+1 < len(plan) {
			return plan[i+1], true
		}
	}
	return Def{}, false
}

func ByKind(kind orders.FlowKind) (*Flow, bool) {
	switch kind {
	case orders.FlowMachining:
		return Machining, true
	case orders.FlowEngineRepair:
		return EngineRepair, true
	}
	return nil, false
}

// Terminal-step and photo-step command labels, shared by both flows.
const (
	ButtonPhotosDone  = "✅ Все фото отправлены"
	ButtonFinalize    = "✅ Оформить заказ"
	ButtonAddComment  = "✍️ Добавить комментарий"
	KeySkipPhotoLabel = "btn_skip_photo"

	// NoCommentText is the comment stored when the customer finalizes
	// through the terminal command.
	NoCommentText = "Нет дополнительных комментариев"
)

const finalPrompt = "🎯 *Почти готово!*\n\n" +
	"Хотите добавить комментарий к заказу? Например:\n" +
	"• Особые требования\n" +
	"• Пожелания по срокам\n" +
	"• Контакт для связи\n\n" +
	"Если всё ясно — просто нажмите кнопку '" + ButtonFinalize + "'"

var urgencyOptions = []Option{
	{ID: "urgency_high", TextKey: "btn_urgency_high", Default: "Высокая"},
	{ID: "urgency_med", TextKey: "btn_urgency_med", Default: "Средняя"},
	{ID: "urgency_low", TextKey: "btn_urgency_low", Default: "Низкая"},
}

var Machining = &Flow{
	Kind:  orders.FlowMachining,
	Title: "Станочные работы",
	steps: []Def{
		{Step: MachiningPhoto, Field: orders.FieldPhotoRefs, Input: InputPhotos, Prompt: "step_photo_text"},
		{Step: MachiningWorkType, Field: orders.FieldWorkType, Input: InputChoice, Prompt: "step_type_text",
			Options: []Option{
				{ID: "type_repair", TextKey: "btn_type_repair"},
				{ID: "type_copy", TextKey: "btn_type_copy"},
				{ID: "type_drawing", TextKey: "btn_type_drawing"},
			}},
		{Step: MachiningDimensions, Field: orders.FieldDimensionsInfo, Input: InputText, Prompt: "step_dim_text", Validate: NonEmpty},
		{Step: MachiningConditions, Field: orders.FieldConditions, Input: InputChoice, Prompt: "step_cond_text",
			Options: []Option{
				{ID: "cond_rotation", TextKey: "btn_cond_rotation"},
				{ID: "cond_static", TextKey: "btn_cond_static"},
				{ID: "cond_impact", TextKey: "btn_cond_impact"},
				{ID: "cond_unknown", TextKey: "btn_cond_unknown"},
			}},
		{Step: MachiningUrgency, Field: orders.FieldUrgency, Input: InputChoice, Prompt: "step_urgency_text", Options: urgencyOptions},
		{Step: MachiningExtra, Input: InputText, Prompt: "step_extra_text", Validate: NonEmpty, Optional: true},
		{Step: MachiningComment, Field: orders.FieldComment, Input: InputComment, Prompt: "step_final_text", PromptDefault: finalPrompt},
	},
}

var EngineRepair = &Flow{
	Kind:  orders.FlowEngineRepair,
	Title: "Ремонт двигателя",
	steps: []Def{
		{Step: EngineBrand, Field: orders.FieldCarBrand, Input: InputText, Prompt: "engine_brand_text",
			PromptDefault: "🔧 <b>Упрощённый заказ — ремонт двигателя</b>\n\nВведите марку и модель автомобиля (например: Toyota Camry):",
			Validate:      CarBrand},
		{Step: EngineYear, Field: orders.FieldCarYear, Input: InputText, Prompt: "engine_year_text",
			PromptDefault: "📅 Введите год выпуска (например: 2015):", Validate: CarYear},
		{Step: EngineIssue, Field: orders.FieldEngineIssue, Input: InputText, Prompt: "engine_issue_text",
			PromptDefault: "🔧 Опишите проблему своими словами:", Validate: EngineIssueText},
		{Step: EngineUrgency, Field: orders.FieldUrgency, Input: InputChoice, Prompt: "engine_urgency_text",
			PromptDefault: "⚡ Выберите срочность:", Options: urgencyOptions},
		{Step: EngineComment, Field: orders.FieldComment, Input: InputComment, Prompt: "step_final_text", PromptDefault: finalPrompt},
	},
}
