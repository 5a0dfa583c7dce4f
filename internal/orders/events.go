package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventDraftStarted      = "OrderDraftStarted"
	EventDraftRejected     = "OrderDraftRejected"
	EventOrderFinalized    = "OrderFinalized"
	EventDiscussionStarted = "OrderDiscussionStarted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-bot"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type DraftStartedPayload struct {
	OrderID    int64    `json:"order_id"`
	CustomerID int64    `json:"customer_id"`
	FlowKind   FlowKind `json:"flow_kind"`
	Rejected   []int64  `json:"rejected_order_ids,omitempty"`
}

type DraftRejectedPayload struct {
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	Reason     string `json:"reason"` // reset | cancel | start_flow
}

type OrderFinalizedPayload struct {
	OrderID    int64    `json:"order_id"`
	CustomerID int64    `json:"customer_id"`
	FlowKind   FlowKind `json:"flow_kind"`
	Fields     Fields   `json:"fields"`
	Notified   int      `json:"notified_operators"`
}

type DiscussionStartedPayload struct {
	OrderID        int64 `json:"order_id"`
	CustomerID     int64 `json:"customer_id"`
	OperatorChatID int64 `json:"operator_chat_id"`
}

// Emitter publishes lifecycle events. Delivery is best-effort.
type Emitter interface {
	Emit(ctx context.Context, eventType string, orderID int64, payload any)
}

type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, int64, any) {}
