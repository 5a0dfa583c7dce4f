// Package messenger is the outbound chat port. The chat transport itself
// (Telegram or otherwise) lives behind the bot.outbound topic.
package messenger

import "context"

type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type Message struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
	Format string `json:"format,omitempty"` // HTML | Markdown
	// Photos are opaque media refs. One photo carries Text as caption; more
	// are sent as a group followed by Text.
	Photos         []string   `json:"photos,omitempty"`
	Buttons        [][]Button `json:"buttons,omitempty"`  // inline actions
	Keyboard       [][]string `json:"keyboard,omitempty"` // reply keyboard
	RemoveKeyboard bool       `json:"remove_keyboard,omitempty"`
}

// Ref identifies a sent message so its actions can be edited later.
type Ref string

type Messenger interface {
	Send(ctx context.Context, m Message) (Ref, error)
	// ClearActions removes the inline buttons of a sent message.
	ClearActions(ctx context.Context, chatID int64, ref Ref) error
}

func Text(chatID int64, text string) Message {
	return Message{ChatID: chatID, Text: text}
}

func HTML(chatID int64, text string) Message {
	return Message{ChatID: chatID, Text: text, Format: "HTML"}
}
