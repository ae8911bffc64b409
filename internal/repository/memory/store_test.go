package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/repository/memory"
	"github.com/Rrens/aniverse-chat/internal/repository/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		store := memory.NewStore()
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

// stepClock hands out times from a fixed base; tests move it explicitly
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestAppendMessage_ClockGoesBackwards(t *testing.T) {
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := &stepClock{now: base}
	store := memory.NewStore(memory.WithClock(clock.Now))
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "", "local")
	require.NoError(t, err)

	clock.Set(base.Add(time.Minute))
	first, err := store.AppendMessage(ctx, session.ID, domain.RoleUser, "first")
	require.NoError(t, err)

	clock.Set(base.Add(-time.Hour))
	second, err := store.AppendMessage(ctx, session.ID, domain.RoleAssistant, "second")
	require.NoError(t, err)

	assert.Equal(t, first.Timestamp, second.Timestamp)

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Timestamp, got.UpdatedAt)
}

func TestListSessions_TieBreaksOnCreatedAt(t *testing.T) {
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := &stepClock{now: base}
	store := memory.NewStore(memory.WithClock(clock.Now))
	ctx := context.Background()

	older, err := store.CreateSession(ctx, "older", "local")
	require.NoError(t, err)

	clock.Set(base.Add(time.Second))
	newer, err := store.CreateSession(ctx, "newer", "local")
	require.NoError(t, err)

	// bump older to exactly the newer session's updatedAt
	_, err = store.AppendMessage(ctx, older.ID, domain.RoleUser, "same instant")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx, "local")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, older.ID, sessions[1].ID)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "original", "local")
	require.NoError(t, err)
	session.Title = "mutated"

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, "hello")
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	messages[0].Content = "mutated"

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)

	messages, err = store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", messages[0].Content)
}
