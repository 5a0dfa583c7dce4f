package bot

import (
	"context"
	"fmt"

	"github.com/ariefcatur/order-intake-bot/internal/operator"
	"github.com/ariefcatur/order-intake-bot/internal/orders"
)

// Conversation is the customer side, implemented by *conversation.Machine.
type Conversation interface {
	Reset(ctx context.Context, c orders.Customer) error
	StartFlow(ctx context.Context, c orders.Customer, kind orders.FlowKind) error
	Cancel(ctx context.Context, c orders.Customer) error
	Text(ctx context.Context, c orders.Customer, raw string) error
	Photo(ctx context.Context, c orders.Customer, mediaRef string) error
	PhotoDone(ctx context.Context, c orders.Customer) error
	PhotoSkip(ctx context.Context, c orders.Customer) error
	Choice(ctx context.Context, c orders.Customer, optionID string) error
	Finalize(ctx context.Context, c orders.Customer) error
	AddComment(ctx context.Context, c orders.Customer) error
}

// Operators is the operator side, implemented by *operator.Router.
type Operators interface {
	OpenReply(ctx context.Context, chatID, orderID int64, sourceRef string) error
	HandleText(ctx context.Context, chatID int64, text, replyToText string) (bool, error)
	CancelReply(ctx context.Context, chatID int64) (bool, error)
	Authorize(ctx context.Context, chatID int64, secret string) error
	Status(ctx context.Context, chatID int64) error
	Panel(ctx context.Context, chatID int64) error
	PanelAction(ctx context.Context, chatID int64, action string) error
	RecentOrders(ctx context.Context, chatID int64) error
}

type Dispatcher struct {
	Conversation Conversation
	Operators    Operators
}

// Dispatch routes u. Operator state wins over conversation state: an open
// reply context captures the operator's next text or cancel.
func (d *Dispatcher) Dispatch(ctx context.Context, u Update) error {
	c := u.Customer()
	switch u.Type {
	case TypeOperatorAuth:
		return d.Operators.Authorize(ctx, u.ChatID, u.Text)
	case TypeOperatorStatus:
		return d.Operators.Status(ctx, u.ChatID)
	case TypeOperatorPanel:
		return d.Operators.Panel(ctx, u.ChatID)
	case TypeOperatorOrders:
		return d.Operators.RecentOrders(ctx, u.ChatID)
	case TypeOpenReply:
		return d.Operators.OpenReply(ctx, u.ChatID, u.OrderID, u.MessageRef)
	case TypeChoice:
		// operator buttons may come through as plain callback data
		if orderID, ok := operator.ParseReplyAction(u.OptionID); ok {
			return d.Operators.OpenReply(ctx, u.ChatID, orderID, u.MessageRef)
		}
		if operator.IsPanelAction(u.OptionID) {
			return d.Operators.PanelAction(ctx, u.ChatID, u.OptionID)
		}
		return d.Conversation.Choice(ctx, c, u.OptionID)
	case TypeText:
		if handled, err := d.Operators.HandleText(ctx, u.ChatID, u.Text, u.ReplyToText); handled {
			return err
		}
		return d.Conversation.Text(ctx, c, u.Text)
	case TypeCancel:
		if handled, err := d.Operators.CancelReply(ctx, u.ChatID); handled || err != nil {
			return err
		}
		return d.Conversation.Cancel(ctx, c)
	case TypeReset:
		return d.Conversation.Reset(ctx, c)
	case TypeStartFlow:
		return d.Conversation.StartFlow(ctx, c, u.Flow)
	case TypePhoto:
		return d.Conversation.Photo(ctx, c, u.MediaRef)
	case TypePhotoDone:
		return d.Conversation.PhotoDone(ctx, c)
	case TypePhotoSkip:
		return d.Conversation.PhotoSkip(ctx, c)
	case TypeFinalize:
		return d.Conversation.Finalize(ctx, c)
	case TypeCommentAdd:
		return d.Conversation.AddComment(ctx, c)
	}
	return fmt.Errorf("bot: unknown update type %q", u.Type)
}
