// Package chat implements the conversational core of the bot: the per-user
// flow state machine, the session registry, and the event list presenter.
// It talks to the outside world only through the Channel interface and the
// inbound Update type, so any transport able to deliver text, option
// keyboards, and files can drive it.
package chat

import (
	"context"

	"github.com/hrygo/eventbot/store"
)

// MessageRef identifies a previously sent message so it can be edited in
// place later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Option is one selectable button offered under a message.
type Option struct {
	Label string
	// Data is the opaque identifier delivered back in Update.Callback
	// when the user presses the button.
	Data string
}

// Channel is the outbound capability the engine requires from the transport.
type Channel interface {
	// SendText sends a message, optionally with rows of selectable options,
	// and returns a reference usable with EditText.
	SendText(ctx context.Context, chatID int64, text string, options [][]Option) (MessageRef, error)

	// EditText replaces the text and options of a previously sent message.
	EditText(ctx context.Context, ref MessageRef, text string, options [][]Option) error

	// SendFile delivers an attachment back to the user, selecting the reply
	// modality by attachment kind.
	SendFile(ctx context.Context, chatID int64, attachment *store.Attachment, caption string) error
}

// PhotoVariant is one resolution variant of an inbound photo. The transport
// passes every variant it was offered; the engine picks the largest.
type PhotoVariant struct {
	Handle string
	Width  int
	Height int
}

// Update is one inbound channel event, already decoded by the transport.
// Exactly one of Command, Callback, Text, Attachment or Photo is expected
// to be meaningful.
type Update struct {
	SenderID int64
	ChatID   int64

	// Command is the bot command without the leading slash, or empty.
	Command string
	// Text is the raw message text for non-command messages.
	Text string
	// Attachment carries an inbound document, audio or voice attachment.
	Attachment *store.Attachment
	// Photo carries inbound photo variants; the engine selects the
	// highest-resolution one.
	Photo []PhotoVariant

	// Callback is the Data of a pressed option, or empty.
	Callback string
	// CallbackRef references the message the pressed option was attached to.
	CallbackRef MessageRef
}

// bestPhoto returns the highest-resolution variant, or nil when there is none.
func bestPhoto(variants []PhotoVariant) *PhotoVariant {
	var best *PhotoVariant
	for i := range variants {
		v := &variants[i]
		if best == nil || v.Width*v.Height > best.Width*best.Height {
			best = v
		}
	}
	return best
}
