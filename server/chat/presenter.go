package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/eventbot/internal/datecode"
	"github.com/hrygo/eventbot/store"
)

const msgNoEvents = "📭 No saved events"

// Presenter renders a user's events as a paginated message with option
// buttons, overwriting the previously sent list message in place when one
// exists.
type Presenter struct {
	store    Store
	channel  Channel
	pageSize int
}

// NewPresenter creates a list presenter with the given page size.
func NewPresenter(store Store, channel Channel, pageSize int) *Presenter {
	return &Presenter{
		store:    store,
		channel:  channel,
		pageSize: pageSize,
	}
}

// AdvancePage moves the stored cursor and re-renders. Render clamps the
// cursor, so stepping past either end sticks to the boundary page.
func (p *Presenter) AdvancePage(ctx context.Context, sess *Session, chatID int64, delta int) error {
	sess.Page += delta
	return p.Render(ctx, sess, chatID)
}

// Render fetches the user's events and shows the current page. When a prior
// list message exists it is edited in place; any edit failure (e.g. the
// message was deleted) is treated as "no prior message" and a fresh message
// is sent instead.
func (p *Presenter) Render(ctx context.Context, sess *Session, chatID int64) error {
	events, err := p.store.ListEvents(ctx, &store.FindEvent{CreatorID: &sess.UserID})
	if err != nil {
		slog.Error("failed to list events",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		_, sendErr := p.channel.SendText(ctx, chatID, "⚠️ Failed to load events", nil)
		return sendErr
	}

	if len(events) == 0 {
		sess.ListMessage = nil
		_, err := p.channel.SendText(ctx, chatID, msgNoEvents, nil)
		return err
	}

	totalPages := (len(events) + p.pageSize - 1) / p.pageSize
	if sess.Page >= totalPages {
		sess.Page = totalPages - 1
	}
	if sess.Page < 0 {
		sess.Page = 0
	}

	text := p.renderPage(events, sess.Page, totalPages)
	options := p.renderOptions(len(events), sess.Page)

	if sess.ListMessage != nil {
		if err := p.channel.EditText(ctx, *sess.ListMessage, text, options); err == nil {
			return nil
		} else {
			slog.Debug("failed to edit list message, sending a new one",
				slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		}
	}

	ref, err := p.channel.SendText(ctx, chatID, text, options)
	if err != nil {
		return err
	}
	sess.ListMessage = &ref
	return nil
}

func (p *Presenter) renderPage(events []*store.Event, page, totalPages int) string {
	start := page * p.pageSize
	end := start + p.pageSize
	if end > len(events) {
		end = len(events)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Your events (page %d/%d):\n\n", page+1, totalPages)
	for _, event := range events[start:end] {
		fmt.Fprintf(&b, "🆔 %d\n⏰ %s: %s\n",
			event.ID, datecode.Display(event.DateTime), event.Description)
		if event.Attachment != nil {
			name := event.Attachment.Name
			if name == "" {
				name = string(event.Attachment.Kind)
			}
			fmt.Fprintf(&b, "📎 File: %s\n", name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *Presenter) renderOptions(total, page int) [][]Option {
	var rows [][]Option

	// Navigation appears only when the events overflow a single page.
	if total > p.pageSize {
		var nav []Option
		if page > 0 {
			nav = append(nav, Option{Label: "⬅️ Back", Data: cbPrevPage})
		}
		if (page+1)*p.pageSize < total {
			nav = append(nav, Option{Label: "Forward ➡️", Data: cbNextPage})
		}
		if len(nav) > 0 {
			rows = append(rows, nav)
		}
	}

	rows = append(rows,
		[]Option{{Label: "📥 Download files", Data: cbGetFiles}},
		[]Option{{Label: "✏️ Edit", Data: cbEditEvent}},
		[]Option{{Label: "❌ Delete", Data: cbDeleteEvent}},
	)
	return rows
}
