package conversation

import (
	"context"
	"fmt"

	"github.com/ariefcatur/order-intake-bot/internal/flow"
	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/ariefcatur/order-intake-bot/internal/session"
	"github.com/ariefcatur/order-intake-bot/internal/settings"
	"go.uber.org/zap"
)

// Resume reconstructs the step of a filling order from the fields it already
// has: the first absent field in flow order wins. A photo step is passed over
// while photos are not required. Steps without a durable field cannot be
// recovered and are skipped. ambiguous reports that a later field is present
// even though an earlier one is not.
func Resume(fl *flow.Flow, o orders.Order, photoRequired bool) (step flow.Step, ambiguous bool) {
	for _, d := range fl.Plan(false) {
		if d.Field == "" || o.Fields.Has(d.Field) {
			if step != nil && d.Field != "" {
				ambiguous = true
			}
			continue
		}
		if d.Input == flow.InputPhotos && !photoRequired {
			continue
		}
		if step == nil {
			step = d.Step
		}
	}
	if step == nil {
		return fl.Terminal().Step, false
	}
	return step, ambiguous
}

// recoverSession rebuilds a lost session from the customer's active draft.
// orders.ErrNotFound means there is nothing to recover.
func (m *Machine) recoverSession(ctx context.Context, t turn) (session.Session, *flow.Flow, error) {
	o, err := m.orders.ActiveDraft(ctx, t.customer.ID)
	if err != nil {
		return session.Session{}, nil, err
	}
	fl, ok := flow.ByKind(o.Kind)
	if !ok {
		return session.Session{}, nil, fmt.Errorf("conversation: order %d has unknown flow %q", o.ID, o.Kind)
	}
	step, ambiguous := Resume(fl, o, t.snap.Bool(settings.KeyPhotoRequired))
	if ambiguous {
		t.log.Info("recovery ambiguity, resuming at first missing field",
			zap.Int64("order_id", o.ID), zap.String("step", step.Name()))
	}
	s := session.Session{
		CustomerID: t.customer.ID,
		OrderID:    o.ID,
		Step:       step,
		Extra:      t.snap.Bool(settings.KeyExtraEnabled),
	}
	m.saveSession(ctx, t, s)
	t.log.Info("session recovered", zap.Int64("order_id", o.ID), zap.String("step", step.Name()))
	_ = m.send(ctx, t, messenger.Text(t.customer.ID, fmt.Sprintf(t.snap.TextOr(KeyRecovered, defaultRecovered), o.ID)))
	return s, fl, nil
}
