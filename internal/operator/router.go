// Package operator routes finalized orders to the operator channels and
// operator replies back to the customer who placed the order.
package operator

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/session"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
	"go.uber.org/zap"
)

var (
	// ErrCorrelationMiss: a reply could not be matched to an order. The reply
	// is dropped.
	ErrCorrelationMiss = errors.New("operator: reply does not match any order")
	ErrAlreadyHandled  = errors.New("operator: order already answered")
	ErrNotOperator     = errors.New("operator: chat is not an operator channel")
)

type Deps struct {
	Orders   orders.Store
	Sessions session.Store
	Settings settings.Source
	Out      messenger.Messenger
	Events   orders.Emitter // optional
	Log      *zap.Logger    // optional
}

type Options struct {
	// StaticOperators are merged with admin_chat_id.
	StaticOperators []int64
	// AdminPassword enables operator-auth; empty disables it.
	AdminPassword string
	// LegacyCorrelation accepts plain replies to notification messages.
	LegacyCorrelation bool
}

type Router struct {
	orders   orders.Store
	sessions session.Store
	settings settings.Source
	out      messenger.Messenger
	events   orders.Emitter
	log      *zap.Logger
	opt      Options
}

func NewRouter(d Deps, opt Options) (*Router, error) {
	if d.Orders == nil || d.Sessions == nil || d.Settings == nil || d.Out == nil {
		return nil, errors.New("operator: orders, sessions, settings and messenger are required")
	}
	if d.Events == nil {
		d.Events = orders.NopEmitter{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Router{
		orders:   d.Orders,
		sessions: d.Sessions,
		settings: d.Settings,
		out:      d.Out,
		events:   d.Events,
		log:      d.Log.Named("operator"),
		opt:      opt,
	}, nil
}

// Operators is the delivery set: static channels first, then admin_chat_id,
// without duplicates.
func (r *Router) Operators(snap settings.Snapshot) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, list := range [][]int64{r.opt.StaticOperators, snap.OperatorChats()} {
		for _, id := range list {
			if id != 0 && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (r *Router) IsOperator(snap settings.Snapshot, chatID int64) bool {
	for _, id := range r.Operators(snap) {
		if id == chatID {
			return true
		}
	}
	return false
}

// Notify sends o to every operator channel. Delivery is fire-and-forget per
// channel: a failure is logged and the next channel is tried.
func (r *Router) Notify(ctx context.Context, o orders.Order, snap settings.Snapshot) int {
	msg := notification(o)
	delivered := 0
	for _, chatID := range r.Operators(snap) {
		msg.ChatID = chatID
		if _, err := r.out.Send(ctx, msg); err != nil {
			r.log.Warn("notification failed",
				zap.Int64("order_id", o.ID), zap.Int64("operator_chat_id", chatID), zap.Error(err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		r.log.Warn("order reached no operator", zap.Int64("order_id", o.ID))
	}
	return delivered
}

// OpenReply starts an Admin Reply Context for orderID in the operator's chat.
// The reply action is one-shot: only orders still in new can be answered.
func (r *Router) OpenReply(ctx context.Context, chatID, orderID int64, sourceRef string) error {
	snap := r.snapshot(ctx)
	log := r.log.With(zap.Int64("operator_chat_id", chatID), zap.Int64("order_id", orderID))
	if !r.IsOperator(snap, chatID) {
		r.tell(ctx, chatID, snap.TextOr(keyNoAccess, defaultNoAccess))
		return ErrNotOperator
	}
	o, err := r.orders.Get(ctx, orderID)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		log.Info("correlation miss: order not found")
		r.tell(ctx, chatID, snap.TextOr(keyOrderNotFound, defaultOrderNotFound))
		return fmt.Errorf("%w: order %d", ErrCorrelationMiss, orderID)
	case err != nil:
		log.Error("store failure", zap.String("op", "open reply"), zap.Error(err))
		r.tell(ctx, chatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: open reply: %w", err)
	}
	if o.Status != orders.StatusNew {
		r.tell(ctx, chatID, fmt.Sprintf(snap.TextOr(keyAlreadyHandled, defaultAlreadyHandled), o.ID))
		return ErrAlreadyHandled
	}
	rc := session.ReplyContext{
		OperatorChatID:   chatID,
		OrderID:          o.ID,
		CustomerID:       o.CustomerID,
		SourceMessageRef: sourceRef,
	}
	if err := r.sessions.SaveReply(ctx, rc); err != nil {
		log.Error("reply context save failed", zap.Error(err))
		r.tell(ctx, chatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: open reply: %w", err)
	}
	r.tellHTML(ctx, chatID, replyPrompt(o))
	return nil
}

// HandleText consumes free text from chatID when it belongs to an operator
// reply. handled is false when the text is not operator business and should
// go to the conversation instead.
func (r *Router) HandleText(ctx context.Context, chatID int64, text, replyToText string) (handled bool, err error) {
	rc, ok, err := r.sessions.GetReply(ctx, chatID)
	if err != nil {
		r.log.Warn("reply context read failed", zap.Int64("operator_chat_id", chatID), zap.Error(err))
	}
	if ok {
		return true, r.relay(ctx, rc, text)
	}
	if r.opt.LegacyCorrelation && replyToText != "" {
		snap := r.snapshot(ctx)
		if r.IsOperator(snap, chatID) {
			return true, r.relayLegacy(ctx, chatID, text, replyToText)
		}
	}
	return false, nil
}

// CancelReply closes the operator's open reply context, if any.
func (r *Router) CancelReply(ctx context.Context, chatID int64) (bool, error) {
	_, ok, err := r.sessions.GetReply(ctx, chatID)
	if err != nil || !ok {
		return false, err
	}
	if err := r.sessions.DeleteReply(ctx, chatID); err != nil {
		return true, fmt.Errorf("operator: cancel reply: %w", err)
	}
	r.tell(ctx, chatID, r.snapshot(ctx).TextOr(keyReplyCanceled, defaultReplyCanceled))
	return true, nil
}

// relay moves the order to discussion first; only the caller that wins that
// compare-and-set talks to the customer, so a reply is never relayed twice.
func (r *Router) relay(ctx context.Context, rc session.ReplyContext, text string) error {
	snap := r.snapshot(ctx)
	log := r.log.With(zap.Int64("operator_chat_id", rc.OperatorChatID), zap.Int64("order_id", rc.OrderID))

	err := r.orders.Transition(ctx, rc.OrderID, orders.StatusNew, orders.StatusDiscussion)
	switch {
	case errors.Is(err, orders.ErrStaleStatus):
		r.closeReply(ctx, log, rc)
		r.tell(ctx, rc.OperatorChatID, fmt.Sprintf(snap.TextOr(keyAlreadyHandled, defaultAlreadyHandled), rc.OrderID))
		return ErrAlreadyHandled
	case errors.Is(err, orders.ErrNotFound):
		log.Info("correlation miss: order vanished")
		r.closeReply(ctx, log, rc)
		return fmt.Errorf("%w: order %d", ErrCorrelationMiss, rc.OrderID)
	case err != nil:
		// context stays open; the operator can send the text again
		log.Error("store failure", zap.String("op", "relay"), zap.Error(err))
		r.tell(ctx, rc.OperatorChatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: relay: %w", err)
	}
	r.closeReply(ctx, log, rc)

	if _, err := r.out.Send(ctx, messenger.HTML(rc.CustomerID, relayText(rc.OrderID, text))); err != nil {
		log.Warn("relay to customer failed", zap.Error(err))
		r.tell(ctx, rc.OperatorChatID, snap.TextOr(keyRelayFailed, defaultRelayFailed))
		return fmt.Errorf("operator: relay: %w", err)
	}
	r.tell(ctx, rc.OperatorChatID, fmt.Sprintf(snap.TextOr(keyReplySent, defaultReplySent), rc.OrderID))

	if rc.SourceMessageRef != "" {
		if err := r.out.ClearActions(ctx, rc.OperatorChatID, messenger.Ref(rc.SourceMessageRef)); err != nil {
			log.Info("reply button left on notification", zap.Error(err))
		}
	}
	r.events.Emit(ctx, orders.EventDiscussionStarted, rc.OrderID, orders.DiscussionStartedPayload{
		OrderID: rc.OrderID, CustomerID: rc.CustomerID, OperatorChatID: rc.OperatorChatID,
	})
	log.Info("reply relayed")
	return nil
}

func (r *Router) closeReply(ctx context.Context, log *zap.Logger, rc session.ReplyContext) {
	if err := r.sessions.DeleteReply(ctx, rc.OperatorChatID); err != nil {
		log.Warn("reply context delete failed", zap.Error(err))
	}
}

// Authorize registers chatID as an operator channel when secret matches.
func (r *Router) Authorize(ctx context.Context, chatID int64, secret string) error {
	snap := r.snapshot(ctx)
	if r.opt.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(r.opt.AdminPassword)) != 1 {
		r.log.Info("operator auth refused", zap.Int64("chat_id", chatID))
		r.tell(ctx, chatID, snap.TextOr(keyBadPassword, defaultBadPassword))
		return ErrNotOperator
	}
	added, err := settings.AddOperatorChat(ctx, r.settings, chatID)
	if err != nil {
		r.log.Error("operator registration failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.tell(ctx, chatID, snap.TextOr(keyFailure, defaultFailure))
		return fmt.Errorf("operator: authorize: %w", err)
	}
	r.log.Info("operator authorized", zap.Int64("chat_id", chatID), zap.Bool("new", added))
	r.tell(ctx, chatID, snap.TextOr(keyAuthorized, defaultAuthorized))
	return nil
}

// Status tells the caller whether its chat receives order notifications.
func (r *Router) Status(ctx context.Context, chatID int64) error {
	snap := r.snapshot(ctx)
	ops := r.Operators(snap)
	switch {
	case len(ops) == 0:
		r.tell(ctx, chatID, defaultNoOperators)
	case r.IsOperator(snap, chatID):
		r.tell(ctx, chatID, fmt.Sprintf("✅ Вы оператор. Chat ID: %d\nВсего операторов: %d", chatID, len(ops)))
	default:
		r.tell(ctx, chatID, fmt.Sprintf("ℹ️ Операторов: %d. Ваш Chat ID: %d", len(ops), chatID))
	}
	return nil
}

func (r *Router) snapshot(ctx context.Context) settings.Snapshot {
	snap, err := r.settings.Snapshot(ctx)
	if err != nil {
		r.log.Warn("settings unavailable", zap.Error(err))
	}
	return snap
}

// tell is best-effort feedback to an operator.
func (r *Router) tell(ctx context.Context, chatID int64, text string) {
	if _, err := r.out.Send(ctx, messenger.Text(chatID, text)); err != nil {
		r.log.Warn("send to operator failed", zap.Int64("operator_chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) tellHTML(ctx context.Context, chatID int64, text string) {
	if _, err := r.out.Send(ctx, messenger.HTML(chatID, text)); err != nil {
		r.log.Warn("send to operator failed", zap.Int64("operator_chat_id", chatID), zap.Error(err))
	}
}
