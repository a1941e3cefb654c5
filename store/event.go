package store

import (
	"context"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// ErrEventNotFound is returned when the requested event does not exist or is
// owned by another user. The two cases are deliberately indistinguishable.
var ErrEventNotFound = errors.New("event not found")

// AttachmentKind is the modality of an event attachment. It also selects the
// reply method used to deliver the file back over the channel.
type AttachmentKind string

const (
	AttachmentDocument AttachmentKind = "document"
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVoice    AttachmentKind = "voice"
)

// Valid reports whether the kind is one of the supported modalities.
func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentDocument, AttachmentPhoto, AttachmentAudio, AttachmentVoice:
		return true
	}
	return false
}

// Attachment is the opaque file reference attached to an event. Handle is
// issued by the transport; Name may be empty and is never set for photo or
// voice attachments.
type Attachment struct {
	Handle string
	Kind   AttachmentKind
	Name   string
}

// Event is the object representing a persisted event.
type Event struct {
	ID        int32
	UID       string
	CreatorID int64
	CreatedTs int64
	UpdatedTs int64

	// DateTime is the canonical "DDMMYY HHMM" encoding.
	DateTime    string
	Description string
	Attachment  *Attachment
}

// FindEvent is the find condition for event.
type FindEvent struct {
	ID        *int32
	CreatorID *int64

	// DatePrefix filters by exact date-prefix match ("DDMMYY") on the
	// canonical encoding.
	DatePrefix *string

	// Pagination
	Limit  *int
	Offset *int
}

// UpdateEvent is the update request for event. Each non-nil field is an
// independent partial mutation; Attachment replaces all three attachment
// columns atomically, RemoveAttachment clears them.
type UpdateEvent struct {
	ID               int32
	DateTime         *string
	Description      *string
	Attachment       *Attachment
	RemoveAttachment bool
}

// DeleteEvent is the delete request for event.
type DeleteEvent struct {
	ID int32
}

// CreateEvent creates a new event. A UID is assigned when the caller did
// not provide one; users address events by the numeric id, the UID exists
// for logs and correlation.
func (s *Store) CreateEvent(ctx context.Context, create *Event) (*Event, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	return s.driver.CreateEvent(ctx, create)
}

// ListEvents lists events with filter, ordered chronologically by the
// decoded date-time (the raw encoding does not sort chronologically).
func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	return s.driver.ListEvents(ctx, find)
}

// GetEvent gets an event with filter. Returns nil when nothing matches.
func (s *Store) GetEvent(ctx context.Context, find *FindEvent) (*Event, error) {
	list, err := s.driver.ListEvents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateEvent updates an event. Updating a missing id fails with
// ErrEventNotFound rather than silently succeeding.
func (s *Store) UpdateEvent(ctx context.Context, update *UpdateEvent) error {
	return s.driver.UpdateEvent(ctx, update)
}

// DeleteEvent deletes an event and returns the pre-delete snapshot, which
// the caller needs for confirmation messaging.
func (s *Store) DeleteEvent(ctx context.Context, delete *DeleteEvent) (*Event, error) {
	snapshot, err := s.GetEvent(ctx, &FindEvent{ID: &delete.ID})
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, ErrEventNotFound
	}
	if err := s.driver.DeleteEvent(ctx, delete); err != nil {
		return nil, err
	}
	return snapshot, nil
}
