// Package storetest holds the behaviour every domain.SessionStore must share.
// Backend packages call Run from their own tests with a constructor for a
// fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It should register its own cleanup.
type Factory func(t *testing.T) domain.SessionStore

// step separates writes whose order the assertions depend on. Durable
// backends keep microsecond (Mongo: millisecond) timestamps.
const step = 5 * time.Millisecond

// Run executes the conformance suite against the store built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("AppendOrdering", func(t *testing.T) { testAppendOrdering(t, newStore(t)) })
	t.Run("AppendValidation", func(t *testing.T) { testAppendValidation(t, newStore(t)) })
	t.Run("AppendMissingSession", func(t *testing.T) { testAppendMissingSession(t, newStore(t)) })
	t.Run("ListMessagesEmpty", func(t *testing.T) { testListMessagesEmpty(t, newStore(t)) })
	t.Run("ListSessionsByActivity", func(t *testing.T) { testListSessionsByActivity(t, newStore(t)) })
	t.Run("ListSessionsByOwner", func(t *testing.T) { testListSessionsByOwner(t, newStore(t)) })
	t.Run("Rename", func(t *testing.T) { testRename(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
	t.Run("DeleteIsAtomicForReaders", func(t *testing.T) { testDeleteIsAtomicForReaders(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "", "owner-1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.DefaultSessionTitle, created.Title)
	assert.Equal(t, "owner-1", created.Owner)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	got, err := store.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Owner, got.Owner)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", created.CreatedAt, got.CreatedAt)

	titled, err := store.CreateSession(ctx, "  Favourite mecha  ", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Favourite mecha", titled.Title)
}

func testGetMissing(t *testing.T, store domain.SessionStore) {
	_, err := store.GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func testAppendOrdering(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "ordering", "owner-1")
	require.NoError(t, err)

	var appended []*domain.Message
	for i := 0; i < 12; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msg, err := store.AppendMessage(ctx, session.ID, role, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, session.ID, msg.SessionID)

		current, err := store.GetSession(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, current.UpdatedAt.Before(msg.Timestamp), "updatedAt must not trail the newest message")

		appended = append(appended, msg)
	}

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, len(appended))
	for i, msg := range messages {
		assert.Equal(t, appended[i].ID, msg.ID)
		assert.Equal(t, appended[i].Role, msg.Role)
		assert.Equal(t, appended[i].Content, msg.Content)
		if i > 0 {
			assert.False(t, msg.Timestamp.Before(messages[i-1].Timestamp), "timestamps must be non-decreasing")
		}
	}
}

func testAppendValidation(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "validation", "owner-1")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, "")
	assert.ErrorIs(t, err, domain.ErrInvalidContent)

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, " \n\t ")
	assert.ErrorIs(t, err, domain.ErrInvalidContent)

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, "naruto\x00shippuden")
	assert.ErrorIs(t, err, domain.ErrInvalidContent)

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleUser, "bad \xff utf8")
	assert.ErrorIs(t, err, domain.ErrInvalidContent)

	_, err = store.AppendMessage(ctx, session.ID, domain.RoleSystem, "be nice")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	after, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, session.UpdatedAt.Equal(after.UpdatedAt))
}

func testAppendMissingSession(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	bystander, err := store.CreateSession(ctx, "bystander", "owner-1")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, uuid.New(), domain.RoleUser, "hello?")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	after, err := store.GetSession(ctx, bystander.ID)
	require.NoError(t, err)
	assert.True(t, bystander.UpdatedAt.Equal(after.UpdatedAt))
}

func testListMessagesEmpty(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "", "owner-1")
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)

	_, err = store.ListMessages(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func testListSessionsByActivity(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	a, err := store.CreateSession(ctx, "A", "owner-1")
	require.NoError(t, err)
	time.Sleep(step)
	b, err := store.CreateSession(ctx, "B", "owner-1")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, b.ID, sessions[0].ID, "newest session first before any activity")

	time.Sleep(step)
	_, err = store.AppendMessage(ctx, a.ID, domain.RoleUser, "bump A")
	require.NoError(t, err)

	sessions, err = store.ListSessions(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, a.ID, sessions[0].ID)
	assert.Equal(t, b.ID, sessions[1].ID)
}

func testListSessionsByOwner(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	_, err := store.CreateSession(ctx, "mine", "owner-1")
	require.NoError(t, err)
	theirs, err := store.CreateSession(ctx, "theirs", "owner-2")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx, "owner-2")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, theirs.ID, sessions[0].ID)

	sessions, err = store.ListSessions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func testRename(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "", "owner-1")
	require.NoError(t, err)

	time.Sleep(step)
	renamed, err := store.RenameSession(ctx, session.ID, "Ghibli rewatch")
	require.NoError(t, err)
	assert.Equal(t, "Ghibli rewatch", renamed.Title)
	assert.True(t, session.UpdatedAt.Equal(renamed.UpdatedAt), "rename must not count as activity")

	renamed, err = store.RenameSession(ctx, session.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionTitle, renamed.Title)

	_, err = store.RenameSession(ctx, uuid.New(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func testDeleteCascades(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	doomed, err := store.CreateSession(ctx, "doomed", "owner-1")
	require.NoError(t, err)
	kept, err := store.CreateSession(ctx, "kept", "owner-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.AppendMessage(ctx, doomed.ID, domain.RoleUser, fmt.Sprintf("doomed %d", i))
		require.NoError(t, err)
	}
	_, err = store.AppendMessage(ctx, kept.ID, domain.RoleUser, "still here")
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, doomed.ID))

	_, err = store.GetSession(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	messages, err := store.ListMessages(ctx, doomed.ID)
	if err == nil {
		assert.Empty(t, messages)
	} else {
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	}

	_, err = store.AppendMessage(ctx, doomed.ID, domain.RoleUser, "too late")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, store.DeleteSession(ctx, doomed.ID), domain.ErrSessionNotFound)

	messages, err = store.ListMessages(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	sessions, err := store.ListSessions(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, kept.ID, sessions[0].ID)
}

func testConcurrentAppends(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "busy", "owner-1")
	require.NoError(t, err)

	const writers, perWriter = 6, 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := store.AppendMessage(ctx, session.ID, domain.RoleUser, fmt.Sprintf("w%d-%d", w, i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("append failed: %v", err)
	}

	messages, err := store.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, writers*perWriter)

	seen := make(map[uuid.UUID]bool, len(messages))
	for i, msg := range messages {
		assert.False(t, seen[msg.ID], "duplicate message id")
		seen[msg.ID] = true
		if i > 0 {
			assert.False(t, msg.Timestamp.Before(messages[i-1].Timestamp))
		}
	}

	current, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, current.UpdatedAt.Before(messages[len(messages)-1].Timestamp))
}

func testDeleteIsAtomicForReaders(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	session, err := store.CreateSession(ctx, "atomic", "owner-1")
	require.NoError(t, err)

	const total = 25
	for i := 0; i < total; i++ {
		_, err := store.AppendMessage(ctx, session.ID, domain.RoleUser, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	var partial []int

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				messages, err := store.ListMessages(ctx, session.ID)
				switch {
				case errors.Is(err, domain.ErrSessionNotFound):
				case err != nil:
					mu.Lock()
					partial = append(partial, -1)
					mu.Unlock()
				case len(messages) != total && len(messages) != 0:
					mu.Lock()
					partial = append(partial, len(messages))
					mu.Unlock()
				}
			}
		}()
	}

	time.Sleep(step)
	require.NoError(t, store.DeleteSession(ctx, session.ID))
	time.Sleep(step)
	close(stop)
	wg.Wait()

	assert.Empty(t, partial, "readers observed a partially deleted session")
}
