package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventbot/internal/profile"
	"github.com/hrygo/eventbot/store"
	"github.com/hrygo/eventbot/store/db"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "eventbot_test.db"),
	}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func createEvent(t *testing.T, s *store.Store, creatorID int64, datetime, description string, attachment *store.Attachment) *store.Event {
	t.Helper()
	event, err := s.CreateEvent(context.Background(), &store.Event{
		CreatorID:   creatorID,
		DateTime:    datetime,
		Description: description,
		Attachment:  attachment,
	})
	require.NoError(t, err)
	return event
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "dentist", nil)
	assert.NotZero(t, event.ID)
	assert.NotEmpty(t, event.UID)
	assert.NotZero(t, event.CreatedTs)

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "150624 1430", got.DateTime)
	assert.Equal(t, "dentist", got.Description)
	assert.Nil(t, got.Attachment)
}

func TestCreateEventWithAttachment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "with file",
		&store.Attachment{Handle: "file-handle", Kind: store.AttachmentDocument, Name: "plan.pdf"})

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "file-handle", got.Attachment.Handle)
	assert.Equal(t, store.AttachmentDocument, got.Attachment.Kind)
	assert.Equal(t, "plan.pdf", got.Attachment.Name)
}

func TestListEventsChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	creatorID := int64(100)

	// Inserted out of order, and crossing a year boundary where the raw
	// DDMMYY encoding sorts differently from calendar order.
	createEvent(t, s, creatorID, "150125 0900", "january 2025", nil)
	createEvent(t, s, creatorID, "311224 2359", "new year's eve 2024", nil)
	createEvent(t, s, creatorID, "150624 1430", "june 2024", nil)
	createEvent(t, s, creatorID, "150624 0900", "june 2024 morning", nil)

	events, err := s.ListEvents(ctx, &store.FindEvent{CreatorID: &creatorID})
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "june 2024 morning", events[0].Description)
	assert.Equal(t, "june 2024", events[1].Description)
	assert.Equal(t, "new year's eve 2024", events[2].Description)
	assert.Equal(t, "january 2025", events[3].Description)
}

func TestListEventsScopedToCreator(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mine := createEvent(t, s, 100, "150624 1430", "mine", nil)
	theirs := createEvent(t, s, 200, "150624 1430", "theirs", nil)

	creatorID := int64(100)
	events, err := s.ListEvents(ctx, &store.FindEvent{CreatorID: &creatorID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, mine.ID, events[0].ID)

	// A foreign id with an owner filter reads as absent.
	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &theirs.ID, CreatorID: &creatorID})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListEventsDatePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	creatorID := int64(100)

	createEvent(t, s, creatorID, "150624 0900", "morning", nil)
	createEvent(t, s, creatorID, "150624 1800", "evening", nil)
	createEvent(t, s, creatorID, "160624 0900", "tomorrow", nil)

	prefix := "150624"
	events, err := s.ListEvents(ctx, &store.FindEvent{CreatorID: &creatorID, DatePrefix: &prefix})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "morning", events[0].Description)
	assert.Equal(t, "evening", events[1].Description)
}

func TestUpdateEventPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "old text",
		&store.Attachment{Handle: "h", Kind: store.AttachmentAudio, Name: "song.mp3"})

	text := "new text"
	require.NoError(t, s.UpdateEvent(ctx, &store.UpdateEvent{ID: event.ID, Description: &text}))

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new text", got.Description)
	assert.Equal(t, "150624 1430", got.DateTime)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "song.mp3", got.Attachment.Name)
}

func TestUpdateEventReplacesAttachment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "text",
		&store.Attachment{Handle: "old", Kind: store.AttachmentDocument, Name: "old.pdf"})

	require.NoError(t, s.UpdateEvent(ctx, &store.UpdateEvent{
		ID:         event.ID,
		Attachment: &store.Attachment{Handle: "new", Kind: store.AttachmentVoice},
	}))

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, "new", got.Attachment.Handle)
	assert.Equal(t, store.AttachmentVoice, got.Attachment.Kind)
	assert.Empty(t, got.Attachment.Name)
}

func TestUpdateEventRemovesAttachment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "text",
		&store.Attachment{Handle: "h", Kind: store.AttachmentPhoto})

	require.NoError(t, s.UpdateEvent(ctx, &store.UpdateEvent{ID: event.ID, RemoveAttachment: true}))

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	assert.Nil(t, got.Attachment)
}

func TestUpdateEventNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	text := "ghost"
	err := s.UpdateEvent(ctx, &store.UpdateEvent{ID: 12345, Description: &text})
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	event := createEvent(t, s, 100, "150624 1430", "doomed", nil)

	snapshot, err := s.DeleteEvent(ctx, &store.DeleteEvent{ID: event.ID})
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "doomed", snapshot.Description)

	got, err := s.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again reports the absence.
	_, err = s.DeleteEvent(ctx, &store.DeleteEvent{ID: event.ID})
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestListEventsLimitOffset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	creatorID := int64(100)

	createEvent(t, s, creatorID, "010624 0900", "first", nil)
	createEvent(t, s, creatorID, "020624 0900", "second", nil)
	createEvent(t, s, creatorID, "030624 0900", "third", nil)

	limit, offset := 1, 1
	events, err := s.ListEvents(ctx, &store.FindEvent{CreatorID: &creatorID, Limit: &limit, Offset: &offset})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Description)
}
