// Package bot turns inbound chat updates into conversation and operator
// commands.
package bot

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/order-intake-bot/internal/orders"
	"github.com/go-playground/validator/v10"
)

type EventType string

const (
	TypeReset          EventType = "reset"
	TypeStartFlow      EventType = "start_flow"
	TypeCancel         EventType = "cancel"
	TypeText           EventType = "text"
	TypePhoto          EventType = "photo"
	TypePhotoDone      EventType = "photo_done"
	TypePhotoSkip      EventType = "photo_skip"
	TypeChoice         EventType = "choice"
	TypeFinalize       EventType = "finalize"
	TypeCommentAdd     EventType = "comment_add"
	TypeOperatorAuth   EventType = "operator_auth"
	TypeOpenReply      EventType = "open_reply"
	TypeOperatorStatus EventType = "operator_status"
	TypeOperatorPanel  EventType = "operator_panel"
	TypeOperatorOrders EventType = "operator_orders"
)

// Update is one transport-neutral inbound event, as published on bot.updates.
type Update struct {
	EventID     string          `json:"event_id" validate:"required,max=128"`
	Type        EventType       `json:"type" validate:"required,oneof=reset start_flow cancel text photo photo_done photo_skip choice finalize comment_add operator_auth open_reply operator_status operator_panel operator_orders"`
	ChatID      int64           `json:"chat_id" validate:"required"`
	UserID      int64           `json:"user_id" validate:"required"`
	Username    string          `json:"username,omitempty" validate:"max=64"`
	DisplayName string          `json:"display_name,omitempty" validate:"max=256"`
	Flow        orders.FlowKind `json:"flow,omitempty" validate:"required_if=Type start_flow"`
	Text        string          `json:"text,omitempty" validate:"max=4096"`
	MediaRef    string          `json:"media_ref,omitempty" validate:"required_if=Type photo,max=512"`
	OptionID    string          `json:"option_id,omitempty" validate:"required_if=Type choice,max=64"`
	OrderID     int64           `json:"order_id,omitempty" validate:"required_if=Type open_reply"`
	MessageRef  string          `json:"message_ref,omitempty" validate:"max=128"`
	ReplyToText string          `json:"reply_to_text,omitempty" validate:"max=4096"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shape of u before it is queued.
func (u Update) Validate() error {
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.Type == TypeStartFlow && !u.Flow.Valid() {
		return fmt.Errorf("bot: unknown flow %q", u.Flow)
	}
	return nil
}

func (u Update) Customer() orders.Customer {
	username := strings.TrimPrefix(u.Username, "@")
	if username == "" {
		username = "NoNick"
	}
	return orders.Customer{ID: u.UserID, Username: username, DisplayName: u.DisplayName}
}
