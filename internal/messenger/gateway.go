package messenger

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/order-intake-bot/internal/kafka"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	OpSend         = "send"
	OpClearActions = "clear_actions"
)

// Command is the bot.outbound wire format consumed by the chat transport.
type Command struct {
	Ref        Ref       `json:"ref"`
	Op         string    `json:"op"`
	ChatID     int64     `json:"chat_id"`
	Message    *Message  `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Gateway publishes outbound commands keyed by chat id. Refs are assigned
// here; the transport maps them to its own message ids.
type Gateway struct {
	P kafkax.Publisher
}

var _ Messenger = (*Gateway)(nil)

func (g *Gateway) Send(_ context.Context, m Message) (Ref, error) {
	ref := Ref(uuid.NewString())
	g.publish(Command{Ref: ref, Op: OpSend, ChatID: m.ChatID, Message: &m, OccurredAt: time.Now().UTC()})
	return ref, nil
}

func (g *Gateway) ClearActions(_ context.Context, chatID int64, ref Ref) error {
	g.publish(Command{Ref: ref, Op: OpClearActions, ChatID: chatID, OccurredAt: time.Now().UTC()})
	return nil
}

func (g *Gateway) publish(c Command) {
	g.P.Publish(orders.ChatKey(c.ChatID), kafkax.MustMarshal(c),
		kafkago.Header{Key: "x-op", Value: []byte(c.Op)},
	)
}
