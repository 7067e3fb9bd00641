// Package transport defines the chat-side collaborator the bot talks to:
// the inbound event shape and the outbound message operations. Concrete
// transports live under internal/bot.
package transport

import (
	"context"
	"io"
)

// ParseModeHTML asks the transport to render basic HTML tags.
const ParseModeHTML = "HTML"

// Button is one keyboard key. Inline keys carry Data, which is returned in
// the callback event; reply keys send their Text as a plain message.
type Button struct {
	Text string
	Data string
}

// Keyboard is a set of button rows attached to a message.
type Keyboard struct {
	Inline bool
	Rows   [][]Button
	// Remove asks the client to hide a previously shown reply keyboard.
	Remove bool
}

// Row is a helper for building one keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Options controls how a message is sent.
type Options struct {
	Keyboard  *Keyboard
	ParseMode string
	// EditTarget, when non-zero, is the id of a message to edit in place.
	EditTarget int
}

// Entity is a formatting span of a text message. Offset and Length count
// UTF-16 code units.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string
}

// Event is one inbound user action: a text message or a button press.
type Event struct {
	// ID correlates every log line produced while handling the event.
	ID        string
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int

	Text     string
	Entities []Entity

	// CallbackID and Data are set for inline button presses.
	CallbackID string
	Data       string
}

// IsCallback reports whether the event is an inline button press.
func (e Event) IsCallback() bool { return e.CallbackID != "" }

// Sender performs outbound chat operations.
type Sender interface {
	// SendOrEdit sends a new message, or edits opts.EditTarget, and returns
	// the id of the resulting message.
	SendOrEdit(ctx context.Context, chatID int64, text string, opts Options) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
	SendDocument(ctx context.Context, chatID int64, name string, r io.Reader, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handler consumes one event.
type Handler func(ctx context.Context, ev Event)

// Source delivers inbound events to h until ctx is done.
type Source interface {
	Run(ctx context.Context, h Handler) error
}
