package conversation

import (
	"context"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"go.uber.org/zap"
)

// Reasons recorded on OrderDraftRejected.
const (
	ReasonReset     = "reset"
	ReasonCancel    = "cancel"
	ReasonStartFlow = "start_flow"
)

// startDraft enforces one filling order per customer: every other draft is
// rejected before the new one exists. Stores with transactions do both in one.
func (m *Machine) startDraft(ctx context.Context, t turn, kind orders.FlowKind) (orders.Order, error) {
	o, rejected, err := m.orders.StartDraft(ctx, t.customer, kind)
	if err != nil {
		return orders.Order{}, err
	}
	m.emitRejected(ctx, t, rejected, ReasonStartFlow)
	m.events.Emit(ctx, orders.EventDraftStarted, o.ID, orders.DraftStartedPayload{
		OrderID: o.ID, CustomerID: t.customer.ID, FlowKind: kind, Rejected: rejected,
	})
	t.log.Info("draft started", zap.Int64("order_id", o.ID), zap.String("flow", string(kind)))
	return o, nil
}

func (m *Machine) rejectDrafts(ctx context.Context, t turn, reason string) ([]int64, error) {
	ids, err := m.orders.RejectDrafts(ctx, t.customer.ID)
	if err != nil {
		return nil, err
	}
	m.emitRejected(ctx, t, ids, reason)
	return ids, nil
}

func (m *Machine) emitRejected(ctx context.Context, t turn, ids []int64, reason string) {
	if len(ids) == 0 {
		return
	}
	t.log.Info("drafts rejected", zap.Int64s("order_ids", ids), zap.String("reason", reason))
	for _, id := range ids {
		m.events.Emit(ctx, orders.EventDraftRejected, id, orders.DraftRejectedPayload{
			OrderID: id, CustomerID: t.customer.ID, Reason: reason,
		})
	}
}
