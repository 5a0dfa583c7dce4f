package operator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"

	"github.com/ariefcatur/order-intake-bot/internal/messenger"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"go.uber.org/zap"
)

// Deprecated correlation: an operator replies straight to a notification and
// the order number is read back out of the notification text.
var orderNumberPattern = regexp.MustCompile(`(?i)(?:№|No|Num|Заказ)\s*[:#]?\s*(\d+)`)

// ExtractOrderID finds the order number in a notification text.
func ExtractOrderID(text string) (int64, bool) {
	m := orderNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *Router) relayLegacy(ctx context.Context, chatID int64, text, replyToText string) error {
	log := r.log.With(zap.Int64("operator_chat_id", chatID), zap.Bool("legacy", true))
	orderID, ok := ExtractOrderID(replyToText)
	if !ok {
		log.Info("correlation miss: no order number in replied message")
		return ErrCorrelationMiss
	}
	log = log.With(zap.Int64("order_id", orderID))
	o, err := r.orders.Get(ctx, orderID)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		log.Info("correlation miss: order not found")
		return fmt.Errorf("%w: order %d", ErrCorrelationMiss, orderID)
	case err != nil:
		log.Error("store failure", zap.String("op", "legacy relay"), zap.Error(err))
		return fmt.Errorf("operator: legacy relay: %w", err)
	}

	msg := messenger.HTML(o.CustomerID, "👨‍🔧 <b>Мастер:</b>\n"+html.EscapeString(text))
	if _, err := r.out.Send(ctx, msg); err != nil {
		log.Warn("relay to customer failed", zap.Error(err))
		r.tell(ctx, chatID, defaultRelayFailed)
		return fmt.Errorf("operator: legacy relay: %w", err)
	}
	if err := r.orders.Transition(ctx, o.ID, orders.StatusNew, orders.StatusDiscussion); err == nil {
		r.events.Emit(ctx, orders.EventDiscussionStarted, o.ID, orders.DiscussionStartedPayload{
			OrderID: o.ID, CustomerID: o.CustomerID, OperatorChatID: chatID,
		})
	} else if !errors.Is(err, orders.ErrStaleStatus) {
		log.Warn("discussion status not set", zap.Error(err))
	}
	r.tell(ctx, chatID, "👍")
	log.Info("legacy reply relayed")
	return nil
}
