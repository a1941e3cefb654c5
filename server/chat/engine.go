package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/eventbot/internal/datecode"
	"github.com/hrygo/eventbot/store"
)

// Store is the interface for store operations needed by the chat engine.
type Store interface {
	CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error)
	ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error)
	GetEvent(ctx context.Context, find *store.FindEvent) (*store.Event, error)
	UpdateEvent(ctx context.Context, update *store.UpdateEvent) error
	DeleteEvent(ctx context.Context, delete *store.DeleteEvent) (*store.Event, error)
}

const (
	msgHelp = "📅 Event tracking bot\n\n" +
		"Available commands:\n" +
		"/add - add an event\n" +
		"/list - list events\n" +
		"/today - today's events\n" +
		"/file - fetch an event file\n" +
		"/edit - edit an event\n" +
		"/delete - delete an event\n\n" +
		"Date format: DDMMYY HHMM (e.g. 150624 1430)"

	msgPromptDateTime    = "📆 Enter the event date and time (DDMMYY HHMM, e.g. 150624 1430):"
	msgBadDateFormat     = "❌ Invalid format! Use DDMMYY HHMM (e.g. 150624 1430)"
	msgDateNotFuture     = "❌ The date must be in the future!"
	msgPromptDescription = "✏️ Enter the event description:"
	msgPromptAttachment  = "📎 Attach a file (document/photo/audio/voice) or press /skip"
	msgBadAttachment     = "❌ Only documents, photos, audio and voice messages are supported"
	msgEventSaved        = "✅ Event saved!"
	msgEventSavedFile    = "✅ Event saved! With file!"
	msgSaveFailed        = "⚠️ Failed to save the event"
	msgPromptEventID     = "Enter the event ID to fetch its file:"
	msgBadEventID        = "❌ Enter a numeric event ID"
	msgFileNotFound      = "❌ File not found"
	msgFetchFileFailed   = "⚠️ Failed to fetch the file"
	msgEventNotFound     = "❌ Event not found"
	msgEditChoice        = "What do you want to change?"
	msgPromptNewDateTime = "Enter the new date and time (DDMMYY HHMM, e.g. 150624 1430):"
	msgPromptNewText     = "Enter the new event text:"
	msgPromptNewFile     = "📎 Attach a new file (document/photo/audio/voice) or press /remove_file to remove the file"
	msgDateUpdated       = "✅ Event date updated!"
	msgTextUpdated       = "✅ Event text updated!"
	msgFileUpdated       = "✅ Event file updated!"
	msgFileRemoved       = "✅ File removed from the event!"
	msgUpdateFailed      = "⚠️ Failed to update the event"
	msgDeleteCancelled   = "❌ Deletion cancelled"
	msgDeleteFailed      = "⚠️ Failed to delete the event"
	msgNoEventsToEdit    = "📭 No events to edit"
	msgNoEventsToDelete  = "📭 No events to delete"
	msgInternalError     = "⚠️ Something went wrong, please start over"
)

// Callback identifiers understood by the engine.
const (
	cbPrevPage      = "prev_page"
	cbNextPage      = "next_page"
	cbGetFiles      = "get_files"
	cbEditEvent     = "edit_event"
	cbDeleteEvent   = "delete_event"
	cbEditDateTime  = "edit_datetime"
	cbEditText      = "edit_text"
	cbEditFile      = "edit_file"
	cbConfirmDelete = "confirm_del_"
	cbCancelDelete  = "cancel_del"
)

// Engine sequences the multi-step conversation flows. One engine serves all
// users; per-user state lives in the session manager, and the surrounding
// dispatcher guarantees updates of a single user arrive one at a time.
type Engine struct {
	store     Store
	channel   Channel
	sessions  *Manager
	presenter *Presenter

	// now is injectable for the future-date validation tests.
	now func() time.Time
}

// NewEngine creates the conversation engine.
func NewEngine(store Store, channel Channel, sessions *Manager, pageSize int) *Engine {
	return &Engine{
		store:     store,
		channel:   channel,
		sessions:  sessions,
		presenter: NewPresenter(store, channel, pageSize),
		now:       time.Now,
	}
}

// HandleUpdate processes one inbound channel event for its sender. The
// returned error reports transport failures only; user mistakes are answered
// over the channel and do not surface here.
func (e *Engine) HandleUpdate(ctx context.Context, up *Update) error {
	sess := e.sessions.GetOrCreate(ctx, up.SenderID)
	defer e.sessions.Touch(ctx, sess)

	if up.Command != "" {
		return e.handleCommand(ctx, sess, up)
	}
	if up.Callback != "" {
		return e.handleCallback(ctx, sess, up)
	}
	return e.handleMessage(ctx, sess, up)
}

func (e *Engine) handleCommand(ctx context.Context, sess *Session, up *Update) error {
	switch up.Command {
	case "start":
		e.sessions.Abandon(ctx, sess)
		return e.send(ctx, up.ChatID, msgHelp)

	case "add":
		e.sessions.Abandon(ctx, sess)
		sess.Flow = FlowAdd
		sess.State = StateAwaitDateTime
		return e.send(ctx, up.ChatID, msgPromptDateTime)

	case "list":
		e.sessions.Abandon(ctx, sess)
		sess.Page = 0
		return e.presenter.Render(ctx, sess, up.ChatID)

	case "today":
		e.sessions.Abandon(ctx, sess)
		return e.showToday(ctx, sess, up.ChatID)

	case "file":
		e.sessions.Abandon(ctx, sess)
		sess.Flow = FlowFetchFile
		sess.State = StateAwaitEventID
		return e.send(ctx, up.ChatID, msgPromptEventID)

	case "edit":
		e.sessions.Abandon(ctx, sess)
		return e.startSelection(ctx, sess, up.ChatID, FlowEdit)

	case "delete":
		e.sessions.Abandon(ctx, sess)
		return e.startSelection(ctx, sess, up.ChatID, FlowDelete)

	case "skip":
		if sess.Flow == FlowAdd && sess.State == StateAwaitAttachment {
			return e.saveDraft(ctx, sess, up.ChatID, nil)
		}
		return nil

	case "remove_file":
		if sess.Flow == FlowEdit && sess.State == StateAwaitNewAttachment {
			return e.applyUpdate(ctx, sess, up.ChatID,
				&store.UpdateEvent{ID: sess.TargetID, RemoveAttachment: true}, msgFileRemoved)
		}
		return nil
	}

	// Unknown commands are the transport's business, not a flow event.
	return nil
}

func (e *Engine) handleMessage(ctx context.Context, sess *Session, up *Update) error {
	switch sess.State {
	case StateAwaitDateTime, StateAwaitNewDateTime:
		return e.handleDateTimeInput(ctx, sess, up)
	case StateAwaitDescription:
		if up.Text == "" {
			return nil
		}
		sess.Draft.Description = up.Text
		sess.State = StateAwaitAttachment
		return e.send(ctx, up.ChatID, msgPromptAttachment)
	case StateAwaitAttachment:
		return e.handleAddAttachment(ctx, sess, up)
	case StateAwaitEventID:
		return e.handleFetchFileID(ctx, sess, up)
	case StateAwaitTargetID:
		return e.handleTargetID(ctx, sess, up)
	case StateAwaitNewDescription:
		if up.Text == "" {
			return nil
		}
		text := up.Text
		return e.applyUpdate(ctx, sess, up.ChatID,
			&store.UpdateEvent{ID: sess.TargetID, Description: &text}, msgTextUpdated)
	case StateAwaitNewAttachment:
		return e.handleEditAttachment(ctx, sess, up)
	}

	// Free messages outside an active flow are ignored.
	return nil
}

func (e *Engine) handleCallback(ctx context.Context, sess *Session, up *Update) error {
	switch {
	case up.Callback == cbPrevPage:
		return e.presenter.AdvancePage(ctx, sess, up.ChatID, -1)
	case up.Callback == cbNextPage:
		return e.presenter.AdvancePage(ctx, sess, up.ChatID, +1)

	case up.Callback == cbGetFiles:
		e.sessions.Abandon(ctx, sess)
		sess.Flow = FlowFetchFile
		sess.State = StateAwaitEventID
		return e.send(ctx, up.ChatID, msgPromptEventID)

	case up.Callback == cbEditEvent:
		e.sessions.Abandon(ctx, sess)
		return e.startSelection(ctx, sess, up.ChatID, FlowEdit)

	case up.Callback == cbDeleteEvent:
		e.sessions.Abandon(ctx, sess)
		return e.startSelection(ctx, sess, up.ChatID, FlowDelete)

	case up.Callback == cbEditDateTime || up.Callback == cbEditText || up.Callback == cbEditFile:
		return e.handleEditChoice(ctx, sess, up)

	case strings.HasPrefix(up.Callback, cbConfirmDelete):
		return e.handleConfirmDelete(ctx, sess, up)

	case up.Callback == cbCancelDelete:
		if sess.Flow != FlowDelete || sess.State != StateConfirmDelete {
			return nil
		}
		e.endFlow(ctx, sess)
		return e.channel.EditText(ctx, up.CallbackRef, msgDeleteCancelled, nil)
	}

	slog.Warn("unknown callback", slog.Int64("user_id", sess.UserID), slog.String("callback", up.Callback))
	return nil
}

// --- Add flow ---

func (e *Engine) handleDateTimeInput(ctx context.Context, sess *Session, up *Update) error {
	if up.Text == "" {
		return nil
	}
	dt, ok := datecode.Parse(up.Text)
	if !ok {
		return e.send(ctx, up.ChatID, msgBadDateFormat)
	}
	if !dt.After(e.now()) {
		return e.send(ctx, up.ChatID, msgDateNotFuture)
	}

	encoded := datecode.Format(dt)
	if sess.State == StateAwaitDateTime {
		sess.Draft.DateTime = encoded
		sess.State = StateAwaitDescription
		return e.send(ctx, up.ChatID, msgPromptDescription)
	}
	return e.applyUpdate(ctx, sess, up.ChatID,
		&store.UpdateEvent{ID: sess.TargetID, DateTime: &encoded}, msgDateUpdated)
}

func (e *Engine) handleAddAttachment(ctx context.Context, sess *Session, up *Update) error {
	attachment := inboundAttachment(up)
	if attachment == nil {
		return e.send(ctx, up.ChatID, msgBadAttachment)
	}
	return e.saveDraft(ctx, sess, up.ChatID, attachment)
}

// saveDraft persists the accumulated Add draft. The flow ends whether the
// write succeeds or not; a persistence failure is reported and not retried.
func (e *Engine) saveDraft(ctx context.Context, sess *Session, chatID int64, attachment *store.Attachment) error {
	draft := sess.Draft
	e.endFlow(ctx, sess)

	if draft.DateTime == "" || draft.Description == "" {
		slog.Error("add flow reached persistence with an incomplete draft",
			slog.Int64("user_id", sess.UserID))
		return e.send(ctx, chatID, msgInternalError)
	}

	event := &store.Event{
		CreatorID:   sess.UserID,
		DateTime:    draft.DateTime,
		Description: draft.Description,
		Attachment:  attachment,
	}
	if _, err := e.store.CreateEvent(ctx, event); err != nil {
		slog.Error("failed to create event",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		return e.send(ctx, chatID, msgSaveFailed)
	}

	if attachment != nil {
		return e.send(ctx, chatID, msgEventSavedFile)
	}
	return e.send(ctx, chatID, msgEventSaved)
}

// --- Fetch-file flow ---

func (e *Engine) handleFetchFileID(ctx context.Context, sess *Session, up *Update) error {
	if up.Text == "" {
		return nil
	}
	id, err := parseEventID(up.Text)
	if err != nil {
		// Recoverable input mistake: stay in the same state.
		return e.send(ctx, up.ChatID, msgBadEventID)
	}

	event, err := e.store.GetEvent(ctx, &store.FindEvent{ID: &id, CreatorID: &sess.UserID})
	if err != nil {
		e.endFlow(ctx, sess)
		slog.Error("failed to look up event",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		return e.send(ctx, up.ChatID, msgFetchFileFailed)
	}
	if event == nil {
		// Unknown and foreign-owned ids are deliberately indistinguishable.
		e.endFlow(ctx, sess)
		return e.send(ctx, up.ChatID, msgFileNotFound)
	}
	if event.Attachment == nil {
		e.endFlow(ctx, sess)
		return e.send(ctx, up.ChatID, fmt.Sprintf("📭 Event %d has no file attached", event.ID))
	}

	caption := event.Attachment.Name
	if caption == "" {
		caption = fmt.Sprintf("File from event %d", event.ID)
	}
	e.endFlow(ctx, sess)
	if err := e.channel.SendFile(ctx, up.ChatID, event.Attachment, caption); err != nil {
		slog.Error("failed to send event file",
			slog.Int64("user_id", sess.UserID),
			slog.Int("event_id", int(event.ID)),
			slog.String("error", err.Error()))
		return e.send(ctx, up.ChatID, msgFetchFileFailed)
	}
	return nil
}

// --- Edit and delete flows ---

// startSelection prints the user's events and asks for the id to edit or
// delete. An empty event list short-circuits without entering the flow.
func (e *Engine) startSelection(ctx context.Context, sess *Session, chatID int64, flow Flow) error {
	events, err := e.store.ListEvents(ctx, &store.FindEvent{CreatorID: &sess.UserID})
	if err != nil {
		slog.Error("failed to list events",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		return e.send(ctx, chatID, msgInternalError)
	}

	if len(events) == 0 {
		if flow == FlowEdit {
			return e.send(ctx, chatID, msgNoEventsToEdit)
		}
		return e.send(ctx, chatID, msgNoEventsToDelete)
	}

	var b strings.Builder
	if flow == FlowEdit {
		b.WriteString("📝 Choose an event to edit (enter its ID):\n\n")
	} else {
		b.WriteString("❌ Choose an event to delete (enter its ID):\n\n")
	}
	for _, event := range events {
		fmt.Fprintf(&b, "🆔 %d\n⏰ %s: %s\n\n",
			event.ID, datecode.Display(event.DateTime), truncate(event.Description, 50))
	}

	sess.Flow = flow
	sess.State = StateAwaitTargetID
	return e.send(ctx, chatID, b.String())
}

func (e *Engine) handleTargetID(ctx context.Context, sess *Session, up *Update) error {
	if up.Text == "" {
		return nil
	}
	flow := sess.Flow

	id, err := parseEventID(up.Text)
	if err != nil {
		// Unlike the fetch-file flow, bad input here ends the flow.
		e.endFlow(ctx, sess)
		return e.send(ctx, up.ChatID, msgBadEventID)
	}

	event, err := e.store.GetEvent(ctx, &store.FindEvent{ID: &id, CreatorID: &sess.UserID})
	if err != nil {
		e.endFlow(ctx, sess)
		slog.Error("failed to look up event",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		return e.send(ctx, up.ChatID, msgInternalError)
	}
	if event == nil {
		e.endFlow(ctx, sess)
		return e.send(ctx, up.ChatID, msgEventNotFound)
	}

	sess.TargetID = event.ID
	if flow == FlowEdit {
		sess.State = StateAwaitEditChoice
		_, err := e.channel.SendText(ctx, up.ChatID, msgEditChoice, [][]Option{
			{{Label: "📅 Date", Data: cbEditDateTime}},
			{{Label: "✏️ Text", Data: cbEditText}},
			{{Label: "📎 File", Data: cbEditFile}},
		})
		return err
	}

	sess.State = StateConfirmDelete
	text := fmt.Sprintf("Are you sure you want to delete this event?\n\n🆔 %d\n⏰ %s: %s",
		event.ID, datecode.Display(event.DateTime), event.Description)
	_, err = e.channel.SendText(ctx, up.ChatID, text, [][]Option{
		{{Label: "✅ Yes, delete", Data: fmt.Sprintf("%s%d", cbConfirmDelete, event.ID)}},
		{{Label: "❌ No, cancel", Data: cbCancelDelete}},
	})
	return err
}

func (e *Engine) handleEditChoice(ctx context.Context, sess *Session, up *Update) error {
	if sess.Flow != FlowEdit || sess.State != StateAwaitEditChoice || sess.TargetID == 0 {
		slog.Warn("edit choice pressed outside an edit flow",
			slog.Int64("user_id", sess.UserID), slog.String("callback", up.Callback))
		return nil
	}

	switch up.Callback {
	case cbEditDateTime:
		sess.State = StateAwaitNewDateTime
		return e.send(ctx, up.ChatID, msgPromptNewDateTime)
	case cbEditText:
		sess.State = StateAwaitNewDescription
		return e.send(ctx, up.ChatID, msgPromptNewText)
	case cbEditFile:
		sess.State = StateAwaitNewAttachment
		return e.send(ctx, up.ChatID, msgPromptNewFile)
	}
	return nil
}

func (e *Engine) handleEditAttachment(ctx context.Context, sess *Session, up *Update) error {
	attachment := inboundAttachment(up)
	if attachment == nil {
		return e.send(ctx, up.ChatID, msgBadAttachment)
	}
	// The three attachment fields are replaced as one unit.
	return e.applyUpdate(ctx, sess, up.ChatID,
		&store.UpdateEvent{ID: sess.TargetID, Attachment: attachment}, msgFileUpdated)
}

func (e *Engine) handleConfirmDelete(ctx context.Context, sess *Session, up *Update) error {
	if sess.Flow != FlowDelete || sess.State != StateConfirmDelete || sess.TargetID == 0 {
		return nil
	}

	raw := strings.TrimPrefix(up.Callback, cbConfirmDelete)
	id, err := parseEventID(raw)
	if err != nil || id != sess.TargetID {
		slog.Warn("delete confirmation for a different event",
			slog.Int64("user_id", sess.UserID), slog.String("callback", up.Callback))
		return nil
	}
	e.endFlow(ctx, sess)

	snapshot, err := e.store.DeleteEvent(ctx, &store.DeleteEvent{ID: id})
	if errors.Is(err, store.ErrEventNotFound) {
		return e.channel.EditText(ctx, up.CallbackRef, msgEventNotFound, nil)
	}
	if err != nil {
		slog.Error("failed to delete event",
			slog.Int64("user_id", sess.UserID),
			slog.Int("event_id", int(id)),
			slog.String("error", err.Error()))
		return e.channel.EditText(ctx, up.CallbackRef, msgDeleteFailed, nil)
	}

	text := fmt.Sprintf("🗑️ Event deleted:\n⏰ %s: %s",
		datecode.Display(snapshot.DateTime), snapshot.Description)
	return e.channel.EditText(ctx, up.CallbackRef, text, nil)
}

// --- Today view ---

func (e *Engine) showToday(ctx context.Context, sess *Session, chatID int64) error {
	now := e.now()
	prefix := now.Format(datecode.DateLayout)
	events, err := e.store.ListEvents(ctx, &store.FindEvent{CreatorID: &sess.UserID, DatePrefix: &prefix})
	if err != nil {
		slog.Error("failed to list today's events",
			slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
		return e.send(ctx, chatID, msgInternalError)
	}

	displayDate := now.Format("02.01.2006")
	if len(events) == 0 {
		return e.send(ctx, chatID, fmt.Sprintf("📭 No events for today (%s)", displayDate))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Today's events (%s):\n\n", displayDate)
	for _, event := range events {
		fmt.Fprintf(&b, "🆔 %d\n⏰ %s: %s\n", event.ID, datecode.DisplayTime(event.DateTime), event.Description)
		if event.Attachment != nil {
			b.WriteString("📎 Has file\n")
		}
		b.WriteString("\n")
	}
	return e.send(ctx, chatID, b.String())
}

// --- Helpers ---

// applyUpdate performs the single-field edit mutation that terminates an edit
// flow. Reaching it with no resolved target is a programming invariant
// violation; it is logged and the flow ends gracefully.
func (e *Engine) applyUpdate(ctx context.Context, sess *Session, chatID int64, update *store.UpdateEvent, success string) error {
	e.endFlow(ctx, sess)

	if update.ID == 0 {
		slog.Error("edit mutation reached with no target id", slog.Int64("user_id", sess.UserID))
		return e.send(ctx, chatID, msgInternalError)
	}

	err := e.store.UpdateEvent(ctx, update)
	if errors.Is(err, store.ErrEventNotFound) {
		return e.send(ctx, chatID, msgEventNotFound)
	}
	if err != nil {
		slog.Error("failed to update event",
			slog.Int64("user_id", sess.UserID),
			slog.Int("event_id", int(update.ID)),
			slog.String("error", err.Error()))
		return e.send(ctx, chatID, msgUpdateFailed)
	}
	return e.send(ctx, chatID, success)
}

func (e *Engine) endFlow(ctx context.Context, sess *Session) {
	sess.endFlow()
	e.sessions.Touch(ctx, sess)
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) error {
	_, err := e.channel.SendText(ctx, chatID, text, nil)
	return err
}

// inboundAttachment extracts the one supported attachment from an update,
// picking the highest-resolution photo variant. Photo and voice attachments
// never carry a display name.
func inboundAttachment(up *Update) *store.Attachment {
	if a := up.Attachment; a != nil && a.Kind.Valid() {
		attachment := *a
		if attachment.Kind == store.AttachmentPhoto || attachment.Kind == store.AttachmentVoice {
			attachment.Name = ""
		}
		return &attachment
	}
	if p := bestPhoto(up.Photo); p != nil {
		return &store.Attachment{Handle: p.Handle, Kind: store.AttachmentPhoto}
	}
	return nil
}

func parseEventID(text string) (int32, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, "invalid event id")
	}
	return int32(id), nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
