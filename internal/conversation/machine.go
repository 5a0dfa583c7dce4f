// Package conversation runs the order-intake state machine: one session per
// customer, advanced by validated input and rebuilt from the durable order
// when the session was lost.
//
// Customers talk to the bot in private chats, so a customer id is also the
// chat id replies go to.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/order-intake-bot/internal/flow"
	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/session"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
	"go.uber.org/zap"
)

// Notifier delivers a finalized order to the operator channels and reports
// how many of them accepted it.
type Notifier interface {
	Notify(ctx context.Context, o orders.Order, snap settings.Snapshot) int
}

type Deps struct {
	Orders   orders.Store
	Sessions session.Store
	Settings settings.Source
	Out      messenger.Messenger
	Notifier Notifier
	Events   orders.Emitter // optional
	Log      *zap.Logger    // optional
}

type Machine struct {
	orders   orders.Store
	sessions session.Store
	settings settings.Source
	out      messenger.Messenger
	notifier Notifier
	events   orders.Emitter
	log      *zap.Logger
}

func New(d Deps) (*Machine, error) {
	if d.Orders == nil || d.Sessions == nil || d.Settings == nil || d.Out == nil || d.Notifier == nil {
		return nil, errors.New("conversation: orders, sessions, settings, messenger and notifier are required")
	}
	if d.Events == nil {
		d.Events = orders.NopEmitter{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Machine{
		orders:   d.Orders,
		sessions: d.Sessions,
		settings: d.Settings,
		out:      d.Out,
		notifier: d.Notifier,
		events:   d.Events,
		log:      d.Log.Named("conversation"),
	}, nil
}

// turn carries what every handler needs for one inbound event.
type turn struct {
	customer orders.Customer
	snap     settings.Snapshot
	log      *zap.Logger

	// set when this event rebuilt a lost session
	resumed    *flow.Flow
	resumedDef flow.Def
}

func (m *Machine) begin(ctx context.Context, c orders.Customer) turn {
	snap, err := m.settings.Snapshot(ctx)
	if err != nil {
		// texts fall back to placeholders; flags read as off
		m.log.Warn("settings unavailable", zap.Error(err))
	}
	return turn{customer: c, snap: snap, log: m.log.With(zap.Int64("customer_id", c.ID))}
}

// Reset handles /start: the session is dropped, every draft rejected and the
// flow menu shown.
func (m *Machine) Reset(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	m.dropSession(ctx, t)
	if _, err := m.rejectDrafts(ctx, t, ReasonReset); err != nil {
		return m.persistenceFailure(ctx, t, "reset", err)
	}
	welcome := t.snap.TextOr(KeyWelcome, defaultWelcome)
	return m.send(ctx, t, menu(c.ID, welcome+"\n\nВыберите тип заказа:"))
}

// StartFlow rejects the customer's drafts, creates a new one and asks the
// first question.
func (m *Machine) StartFlow(ctx context.Context, c orders.Customer, kind orders.FlowKind) error {
	fl, ok := flow.ByKind(kind)
	if !ok {
		return fmt.Errorf("conversation: unknown flow %q", kind)
	}
	t := m.begin(ctx, c)
	o, err := m.startDraft(ctx, t, kind)
	if err != nil {
		return m.persistenceFailure(ctx, t, "start draft", err)
	}
	s := session.Session{
		CustomerID: c.ID,
		OrderID:    o.ID,
		Step:       fl.First().Step,
		Extra:      t.snap.Bool(settings.KeyExtraEnabled),
	}
	m.saveSession(ctx, t, s)
	_ = m.send(ctx, t, messenger.HTML(c.ID, fmt.Sprintf("🆕 <b>Заказ №%d</b>", o.ID)))
	return m.prompt(ctx, t, fl, fl.First())
}

// Cancel drops the session and rejects the draft.
func (m *Machine) Cancel(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	m.dropSession(ctx, t)
	if _, err := m.rejectDrafts(ctx, t, ReasonCancel); err != nil {
		return m.persistenceFailure(ctx, t, "cancel", err)
	}
	return m.send(ctx, t, menu(c.ID, t.snap.TextOr(KeyCanceled, defaultCanceled)))
}

// Text is free-form input. Reply-keyboard labels arrive as text too and are
// routed to their commands.
func (m *Machine) Text(ctx context.Context, c orders.Customer, raw string) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	def, _ := fl.Def(s.Step)
	label := strings.TrimSpace(raw)

	switch def.Input {
	case flow.InputPhotos:
		switch label {
		case flow.ButtonPhotosDone:
			return m.photoDone(ctx, t, fl, def, s)
		case t.snap.TextOr(flow.KeySkipPhotoLabel, defaultSkipPhoto):
			return m.photoSkip(ctx, t, fl, def, s)
		}
		return m.reject(ctx, t, flow.RejectExpectPhoto)
	case flow.InputChoice:
		return m.reject(ctx, t, flow.RejectUseButtons)
	case flow.InputComment:
		switch label {
		case flow.ButtonFinalize:
			return m.finalize(ctx, t, fl, s, flow.NoCommentText)
		case flow.ButtonAddComment:
			return m.askComment(ctx, t)
		}
		if label == "" {
			return m.reject(ctx, t, flow.RejectEmpty)
		}
		return m.finalize(ctx, t, fl, s, label)
	}

	value := raw
	if def.Validate != nil {
		if value, err = def.Validate(raw); err != nil {
			return m.rejectErr(ctx, t, err)
		}
	}
	return m.advance(ctx, t, fl, def, s, value)
}

// Photo appends one media ref to the photo step's scratch.
func (m *Machine) Photo(ctx context.Context, c orders.Customer, mediaRef string) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	def, _ := fl.Def(s.Step)
	if def.Input != flow.InputPhotos {
		return m.reject(ctx, t, flow.RejectNotThisStep)
	}
	s.Photos = append(s.Photos, mediaRef)
	m.saveSession(ctx, t, s)
	msg := messenger.Text(c.ID, fmt.Sprintf("📸 Фото %d принято.", len(s.Photos)))
	msg.Keyboard = m.photoKeyboard(t.snap)
	return m.send(ctx, t, msg)
}

func (m *Machine) PhotoDone(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	def, _ := fl.Def(s.Step)
	if def.Input != flow.InputPhotos {
		return m.reject(ctx, t, flow.RejectNotThisStep)
	}
	return m.photoDone(ctx, t, fl, def, s)
}

func (m *Machine) PhotoSkip(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	def, _ := fl.Def(s.Step)
	if def.Input != flow.InputPhotos {
		return m.reject(ctx, t, flow.RejectNotThisStep)
	}
	return m.photoSkip(ctx, t, fl, def, s)
}

// Choice answers a free-choice step. Option ids of other steps, including
// stale buttons of an already answered question, are invalid selections.
func (m *Machine) Choice(ctx context.Context, c orders.Customer, optionID string) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	def, _ := fl.Def(s.Step)
	opt, ok := def.Option(optionID)
	if def.Input != flow.InputChoice || !ok {
		return m.reject(ctx, t, flow.RejectInvalidSelection)
	}
	return m.advance(ctx, t, fl, def, s, opt.Label(t.snap))
}

// Finalize is the terminal command of the comment step.
func (m *Machine) Finalize(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	if def, _ := fl.Def(s.Step); def.Input != flow.InputComment {
		return m.reject(ctx, t, flow.RejectNotThisStep)
	}
	return m.finalize(ctx, t, fl, s, flow.NoCommentText)
}

// AddComment asks for the comment text without leaving the comment step.
func (m *Machine) AddComment(ctx context.Context, c orders.Customer) error {
	t := m.begin(ctx, c)
	s, fl, err := m.current(ctx, &t)
	if err != nil || fl == nil {
		return err
	}
	if def, _ := fl.Def(s.Step); def.Input != flow.InputComment {
		return m.reject(ctx, t, flow.RejectNotThisStep)
	}
	return m.askComment(ctx, t)
}

func (m *Machine) photoDone(ctx context.Context, t turn, fl *flow.Flow, def flow.Def, s session.Session) error {
	if len(s.Photos) == 0 {
		if t.snap.Bool(settings.KeyPhotoRequired) {
			return m.reject(ctx, t, flow.RejectNoPhotos)
		}
		return m.moveOn(ctx, t, fl, def, s, "👍 Ок, без фото.")
	}
	if err := m.orders.SetField(ctx, s.OrderID, def.Field, strings.Join(s.Photos, ",")); err != nil {
		return m.persistenceFailure(ctx, t, "save photos", err)
	}
	s.Photos = nil
	return m.moveOn(ctx, t, fl, def, s, "👍 Фото приняты.")
}

func (m *Machine) photoSkip(ctx context.Context, t turn, fl *flow.Flow, def flow.Def, s session.Session) error {
	if t.snap.Bool(settings.KeyPhotoRequired) {
		return m.reject(ctx, t, flow.RejectPhotoRequired)
	}
	s.Photos = nil
	return m.moveOn(ctx, t, fl, def, s, "👍 Ок, без фото.")
}

// advance persists an accepted answer and moves to the next step. A failed
// write leaves the session where it was.
func (m *Machine) advance(ctx context.Context, t turn, fl *flow.Flow, def flow.Def, s session.Session, value string) error {
	switch {
	case def.Field != "":
		if err := m.orders.SetField(ctx, s.OrderID, def.Field, value); err != nil {
			return m.persistenceFailure(ctx, t, "save "+def.Field, err)
		}
	case def.Step == flow.MachiningExtra:
		s.Addendum = "Доп: " + value + "\n"
	}
	ack := ""
	if def.Input == flow.InputChoice {
		ack = "✅ " + value
	}
	return m.moveOn(ctx, t, fl, def, s, ack)
}

func (m *Machine) moveOn(ctx context.Context, t turn, fl *flow.Flow, def flow.Def, s session.Session, ack string) error {
	next, ok := fl.Next(def.Step, s.Extra)
	if !ok {
		return fmt.Errorf("conversation: no step after %s/%s", fl.Kind, def.Step.Name())
	}
	s.Step = next.Step
	m.saveSession(ctx, t, s)
	t.log.Debug("step advanced", zap.Int64("order_id", s.OrderID), zap.String("step", next.Step.Name()))
	if ack != "" {
		msg := messenger.Text(t.customer.ID, ack)
		msg.RemoveKeyboard = def.Input == flow.InputPhotos
		_ = m.send(ctx, t, msg)
	}
	return m.prompt(ctx, t, fl, next)
}

// finalize writes the comment, commits the draft to new, and hands the order
// to the operators. Notification failures never undo the finalize.
func (m *Machine) finalize(ctx context.Context, t turn, fl *flow.Flow, s session.Session, text string) error {
	log := t.log.With(zap.Int64("order_id", s.OrderID))
	comment := s.Addendum + text
	if err := m.orders.SetField(ctx, s.OrderID, orders.FieldComment, comment); err != nil {
		return m.persistenceFailure(ctx, t, "save comment", err)
	}
	err := m.orders.Transition(ctx, s.OrderID, orders.StatusFilling, orders.StatusNew)
	switch {
	case errors.Is(err, orders.ErrStaleStatus), errors.Is(err, orders.ErrNotFound):
		// rejected by a newer flow start or gone; this session is stale
		log.Info("draft no longer filling", zap.Error(err))
		m.dropSession(ctx, t)
		return m.send(ctx, t, menu(t.customer.ID, t.snap.TextOr(KeyDraftGone, defaultDraftGone)))
	case err != nil:
		return m.persistenceFailure(ctx, t, "finalize", err)
	}
	m.dropSession(ctx, t)

	done := fmt.Sprintf(t.snap.TextOr(KeyOrderDone, defaultOrderDone), s.OrderID)
	msg := menu(t.customer.ID, done)
	msg.Format = "HTML"
	_ = m.send(ctx, t, msg)

	o, err := m.orders.Get(ctx, s.OrderID)
	if err != nil {
		log.Error("load finalized order for notification", zap.Error(err))
		m.events.Emit(ctx, orders.EventOrderFinalized, s.OrderID, orders.OrderFinalizedPayload{
			OrderID: s.OrderID, CustomerID: t.customer.ID, FlowKind: fl.Kind,
		})
		return nil
	}
	notified := m.notifier.Notify(ctx, o, t.snap)
	log.Info("order finalized", zap.String("flow", string(fl.Kind)), zap.Int("notified", notified))
	m.events.Emit(ctx, orders.EventOrderFinalized, o.ID, orders.OrderFinalizedPayload{
		OrderID: o.ID, CustomerID: o.CustomerID, FlowKind: o.Kind, Fields: o.Fields, Notified: notified,
	})
	return nil
}

func (m *Machine) askComment(ctx context.Context, t turn) error {
	msg := messenger.Text(t.customer.ID, t.snap.TextOr(KeyAskComment, defaultAskComment))
	msg.RemoveKeyboard = true
	return m.send(ctx, t, msg)
}

// current returns the live session, recovering it from the active draft when
// it was lost. fl is nil when the customer has nothing in progress; the idle
// hint has been sent then.
func (m *Machine) current(ctx context.Context, t *turn) (session.Session, *flow.Flow, error) {
	s, ok, err := m.sessions.Get(ctx, t.customer.ID)
	if err != nil {
		t.log.Warn("session read failed, recovering from order", zap.Error(err))
		ok = false
	}
	if ok {
		if _, idle := s.Step.(flow.Idle); !idle && s.Step != nil {
			fl, found := flow.ByKind(s.Step.Flow())
			if found {
				return s, fl, nil
			}
		}
	}

	s, fl, err := m.recoverSession(ctx, *t)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return s, nil, m.send(ctx, *t, menu(t.customer.ID, t.snap.TextOr(KeyIdleHint, defaultIdleHint)))
	case err != nil:
		return s, nil, m.persistenceFailure(ctx, *t, "load draft", err)
	}
	t.resumed = fl
	t.resumedDef, _ = fl.Def(s.Step)
	return s, fl, nil
}

// reject answers input the current step does not accept. After a recovery
// the customer has not seen the step's question yet, so it is asked again.
func (m *Machine) reject(ctx context.Context, t turn, r *flow.Rejection) error {
	t.log.Debug("input rejected", zap.String("reason", r.Key))
	if err := m.send(ctx, t, messenger.Text(t.customer.ID, r.Message(t.snap))); err != nil {
		return err
	}
	if t.resumed != nil {
		return m.prompt(ctx, t, t.resumed, t.resumedDef)
	}
	return nil
}

func (m *Machine) rejectErr(ctx context.Context, t turn, err error) error {
	var r *flow.Rejection
	if errors.As(err, &r) {
		return m.reject(ctx, t, r)
	}
	return m.reject(ctx, t, &flow.Rejection{Key: KeyInvalidInput, Text: err.Error()})
}

// persistenceFailure reports a store error to the customer. Nothing advanced,
// so the customer can simply repeat the last input.
func (m *Machine) persistenceFailure(ctx context.Context, t turn, op string, err error) error {
	t.log.Error("store failure", zap.String("op", op), zap.Error(err))
	_ = m.send(ctx, t, messenger.Text(t.customer.ID, t.snap.TextOr(KeyStoreError, defaultStoreError)))
	return fmt.Errorf("conversation: %s: %w", op, err)
}

func (m *Machine) send(ctx context.Context, t turn, msg messenger.Message) error {
	if _, err := m.out.Send(ctx, msg); err != nil {
		t.log.Warn("send to customer failed", zap.Error(err))
		return fmt.Errorf("conversation: send: %w", err)
	}
	return nil
}

// Session writes are best-effort: a lost session is rebuilt from the order.
func (m *Machine) saveSession(ctx context.Context, t turn, s session.Session) {
	if err := m.sessions.Save(ctx, s); err != nil {
		t.log.Warn("session save failed", zap.Error(err))
	}
}

func (m *Machine) dropSession(ctx context.Context, t turn) {
	if err := m.sessions.Delete(ctx, t.customer.ID); err != nil {
		t.log.Warn("session delete failed", zap.Error(err))
	}
}
