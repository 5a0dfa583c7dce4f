// Package session holds the ephemeral per-chat state: the Conversation
// Session of a customer filling a draft and the Admin Reply Context of an
// operator answering an order. Losing either is expected and recoverable.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/order-intake-bot/internal/flow"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
)

type Session struct {
	CustomerID int64
	OrderID    int64
	Step       flow.Step
	// Extra records step_extra_enabled as seen at flow entry.
	Extra bool
	// scratch, not yet persisted
	Photos   []string
	Addendum string
}

type ReplyContext struct {
	OperatorChatID   int64  `json:"operator_chat_id"`
	OrderID          int64  `json:"order_id"`
	CustomerID       int64  `json:"customer_id"`
	SourceMessageRef string `json:"source_message_ref,omitempty"`
}

// Store keeps sessions by customer id and reply contexts by operator chat id.
// Get* report ok=false when nothing is stored.
type Store interface {
	Get(ctx context.Context, customerID int64) (Session, bool, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, customerID int64) error

	GetReply(ctx context.Context, operatorChatID int64) (ReplyContext, bool, error)
	SaveReply(ctx context.Context, rc ReplyContext) error
	DeleteReply(ctx context.Context, operatorChatID int64) error
}

type wireSession struct {
	CustomerID int64           `json:"customer_id"`
	OrderID    int64           `json:"order_id"`
	Flow       orders.FlowKind `json:"flow"`
	Step       string          `json:"step"`
	Extra      bool            `json:"extra,omitempty"`
	Photos     []string        `json:"photos,omitempty"`
	Addendum   string          `json:"addendum,omitempty"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	step := s.Step
	if step == nil {
		step = flow.Idle{}
	}
	return json.Marshal(wireSession{
		CustomerID: s.CustomerID,
		OrderID:    s.OrderID,
		Flow:       step.Flow(),
		Step:       step.Name(),
		Extra:      s.Extra,
		Photos:     s.Photos,
		Addendum:   s.Addendum,
	})
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var w wireSession
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	step, err := flow.ParseStep(w.Flow, w.Step)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	*s = Session{
		CustomerID: w.CustomerID,
		OrderID:    w.OrderID,
		Step:       step,
		Extra:      w.Extra,
		Photos:     w.Photos,
		Addendum:   w.Addendum,
	}
	return nil
}
