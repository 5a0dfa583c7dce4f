package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventSink publishes order lifecycle envelopes, keyed by order id.
type EventSink struct {
	P       Publisher
	Service string
}

var _ orders.Emitter = (*EventSink)(nil)

func (s *EventSink) Emit(ctx context.Context, eventType string, orderID int64, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       MustMarshal(payload),
	}
	s.P.Publish(orders.PartitionKey(orderID), MustMarshal(ev),
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
