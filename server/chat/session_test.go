package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerGetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(time.Minute)
	defer m.Close()

	assert.Nil(t, m.Get(ctx, 1))

	sess := m.GetOrCreate(ctx, 1)
	require.NotNil(t, sess)
	assert.Equal(t, int64(1), sess.UserID)
	assert.Equal(t, FlowNone, sess.Flow)

	// The same session comes back on the next lookup.
	assert.Same(t, sess, m.GetOrCreate(ctx, 1))
	assert.Same(t, sess, m.Get(ctx, 1))

	// Different users get different sessions.
	other := m.GetOrCreate(ctx, 2)
	assert.NotSame(t, sess, other)
}

func TestManagerIdleExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewManager(20 * time.Millisecond)
	defer m.Close()

	sess := m.GetOrCreate(ctx, 1)
	sess.Flow = FlowAdd
	sess.State = StateAwaitDateTime
	m.Touch(ctx, sess)

	time.Sleep(40 * time.Millisecond)

	// The idle session is gone; a fresh one has no flow.
	assert.Nil(t, m.Get(ctx, 1))
	fresh := m.GetOrCreate(ctx, 1)
	assert.NotSame(t, sess, fresh)
	assert.Equal(t, FlowNone, fresh.Flow)
}

func TestManagerTouchExtendsTTL(t *testing.T) {
	ctx := context.Background()
	m := NewManager(50 * time.Millisecond)
	defer m.Close()

	sess := m.GetOrCreate(ctx, 1)
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		m.Touch(ctx, sess)
	}

	assert.Same(t, sess, m.Get(ctx, 1))
}

func TestAbandonKeepsPresentationState(t *testing.T) {
	ctx := context.Background()
	m := NewManager(time.Minute)
	defer m.Close()

	sess := m.GetOrCreate(ctx, 1)
	sess.Flow = FlowEdit
	sess.State = StateAwaitEditChoice
	sess.TargetID = 7
	sess.Draft = Draft{DateTime: "150624 1430", Description: "half done"}
	sess.Page = 2
	sess.ListMessage = &MessageRef{ChatID: 1, MessageID: 10}

	m.Abandon(ctx, sess)

	assert.Equal(t, FlowNone, sess.Flow)
	assert.Equal(t, StateNone, sess.State)
	assert.Zero(t, sess.TargetID)
	assert.Equal(t, Draft{}, sess.Draft)

	// Pagination survives: it has no terminal state.
	assert.Equal(t, 2, sess.Page)
	require.NotNil(t, sess.ListMessage)
	assert.Equal(t, 10, sess.ListMessage.MessageID)
}
