package conversation

import (
	"context"

	"github.com/ariefcatur/order-intake-bot/internal/flow"
	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
)

// Main menu labels. The transport maps them to start_flow updates.
const (
	MenuEngineRepair = "🔧 Ремонт двигателя"
	MenuMachining    = "⚙️ Станочные работы"
)

// bot_config text keys
const (
	KeyWelcome      = "welcome_msg"
	KeyCanceled     = "msg_order_canceled"
	KeyIdleHint     = "msg_idle_hint"
	KeyOrderDone    = "msg_order_done"
	KeyDraftGone    = "msg_draft_gone"
	KeyAskComment   = "msg_ask_comment"
	KeyStoreError   = "msg_store_error"
	KeyInvalidInput = "msg_invalid_input"
	KeyRecovered    = "msg_recovered"
)

const (
	defaultWelcome    = "👋 Здравствуйте! Я помогу оформить заказ."
	defaultCanceled   = "❌ Заказ отменён."
	defaultIdleHint   = "Выберите тип заказа в меню ниже 👇"
	defaultOrderDone  = "🎉 <b>Заказ успешно оформлен!</b>\n\n📋 <b>Номер заказа:</b> №%d\n\nМы свяжемся с вами в ближайшее время для уточнения деталей.\nСпасибо за заказ! ✅"
	defaultDraftGone  = "⚠️ Этот заказ больше не активен. Начните новый из меню."
	defaultAskComment = "✍️ Напишите ваш комментарий к заказу:\n\n(Можете написать любые пожелания или вопросы)"
	defaultStoreError = "⚠️ Не удалось сохранить ответ. Попробуйте ещё раз чуть позже."
	defaultRecovered  = "⚠️ Восстанавливаем ваш заказ №%d."
	defaultSkipPhoto  = "➡️ Пропустить фото"
)

func menu(chatID int64, text string) messenger.Message {
	msg := messenger.Text(chatID, text)
	msg.Keyboard = [][]string{{MenuEngineRepair}, {MenuMachining}}
	return msg
}

func format(kind orders.FlowKind) string {
	if kind == orders.FlowEngineRepair {
		return "HTML"
	}
	return "Markdown"
}

func (m *Machine) photoKeyboard(snap settings.Snapshot) [][]string {
	kb := [][]string{{flow.ButtonPhotosDone}}
	if !snap.Bool(settings.KeyPhotoRequired) {
		kb = append(kb, []string{snap.TextOr(flow.KeySkipPhotoLabel, defaultSkipPhoto)})
	}
	return kb
}

// prompt asks the question of def with the controls its input kind needs.
func (m *Machine) prompt(ctx context.Context, t turn, fl *flow.Flow, def flow.Def) error {
	msg := messenger.Message{
		ChatID: t.customer.ID,
		Text:   def.PromptText(t.snap),
		Format: format(fl.Kind),
	}
	switch def.Input {
	case flow.InputPhotos:
		msg.Keyboard = m.photoKeyboard(t.snap)
	case flow.InputChoice:
		for _, o := range def.Options {
			msg.Buttons = append(msg.Buttons, []messenger.Button{{Label: o.Label(t.snap), Data: o.ID}})
		}
	case flow.InputComment:
		msg.Keyboard = [][]string{{flow.ButtonFinalize}, {flow.ButtonAddComment}}
	default:
		msg.RemoveKeyboard = def.Step == fl.First().Step
	}
	return m.send(ctx, t, msg)
}
