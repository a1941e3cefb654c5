package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/eventbot/store/cache"
)

// Flow identifies which multi-step operation a session is currently running.
type Flow int

const (
	FlowNone Flow = iota
	FlowAdd
	FlowFetchFile
	FlowEdit
	FlowDelete
)

func (f Flow) String() string {
	switch f {
	case FlowAdd:
		return "add"
	case FlowFetchFile:
		return "fetch-file"
	case FlowEdit:
		return "edit"
	case FlowDelete:
		return "delete"
	default:
		return "none"
	}
}

// State is the position inside the active flow.
type State int

const (
	StateNone State = iota

	// Add flow
	StateAwaitDateTime
	StateAwaitDescription
	StateAwaitAttachment

	// Fetch-file flow
	StateAwaitEventID

	// Edit and delete flows share the id-selection state.
	StateAwaitTargetID
	StateAwaitEditChoice
	StateAwaitNewDateTime
	StateAwaitNewDescription
	StateAwaitNewAttachment
	StateConfirmDelete
)

// Draft holds the not-yet-persisted field values assembled during the Add flow.
type Draft struct {
	DateTime    string
	Description string
}

// Session is the per-user transient conversation state. It is owned by
// exactly one user and is only ever touched from that user's serialized
// update handling.
type Session struct {
	UserID int64

	Flow     Flow
	State    State
	Draft    Draft
	TargetID int32

	// Presentation state for the list view. It survives flow completion:
	// pagination has no terminal state.
	Page        int
	ListMessage *MessageRef
}

// endFlow clears the flow position but keeps the presentation state.
func (s *Session) endFlow() {
	s.Flow = FlowNone
	s.State = StateNone
	s.Draft = Draft{}
	s.TargetID = 0
}

// Manager keeps one Session per user. Idle sessions expire after the
// configured TTL, which is the abandonment policy for flows the user walked
// away from; an expired session is indistinguishable from no session.
type Manager struct {
	sessions *cache.Cache
	ttl      time.Duration
}

// NewManager creates a session manager with the given idle TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: cache.New(cache.Config{
			DefaultTTL:      ttl,
			CleanupInterval: time.Minute,
		}),
		ttl: ttl,
	}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session/%d", userID)
}

// Get returns the user's session, or nil when none is active.
func (m *Manager) Get(ctx context.Context, userID int64) *Session {
	v, ok := m.sessions.Get(ctx, sessionKey(userID))
	if !ok {
		return nil
	}
	return v.(*Session)
}

// GetOrCreate returns the user's session, creating an empty one if needed.
func (m *Manager) GetOrCreate(ctx context.Context, userID int64) *Session {
	if sess := m.Get(ctx, userID); sess != nil {
		return sess
	}
	sess := &Session{UserID: userID}
	m.sessions.Set(ctx, sessionKey(userID), sess)
	return sess
}

// Touch refreshes the session's idle TTL. Call it after mutating the session
// in response to a user update.
func (m *Manager) Touch(ctx context.Context, sess *Session) {
	m.sessions.Set(ctx, sessionKey(sess.UserID), sess)
}

// Abandon explicitly drops an in-progress flow, keeping presentation state.
// Entering any flow entry point while another flow is active goes through
// here, so abandonment is a deliberate transition rather than a side effect
// of overwriting draft fields.
func (m *Manager) Abandon(ctx context.Context, sess *Session) {
	if sess.Flow != FlowNone {
		slog.Debug("abandoning active flow",
			slog.Int64("user_id", sess.UserID),
			slog.String("flow", sess.Flow.String()))
	}
	sess.endFlow()
	m.Touch(ctx, sess)
}

// Close stops the expiry sweeper.
func (m *Manager) Close() {
	m.sessions.Close()
}
