package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	client, _ := newTestClient(t)
	limiter := NewRateLimiter(client, 2, 1)
	fixed := time.Date(2026, 10, 17, 12, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "owner-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		assert.Equal(t, 2-i, remaining)
		assert.Equal(t, time.Date(2026, 10, 17, 12, 1, 0, 0, time.UTC), reset)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "owner-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	// other clients keep their own budget
	allowed, _, _, err = limiter.Allow(ctx, "owner-2")
	require.NoError(t, err)
	assert.True(t, allowed)

	// next window starts fresh
	limiter.now = func() time.Time { return fixed.Add(time.Minute) }
	allowed, _, _, err = limiter.Allow(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTurnLocker_OneTurnPerSession(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewTurnLocker(client, time.Minute)
	ctx := context.Background()
	session := uuid.New()

	unlock, err := locker.TryLock(ctx, session)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, session)
	assert.ErrorIs(t, err, domain.ErrTurnInProgress)

	otherUnlock, err := locker.TryLock(ctx, uuid.New())
	require.NoError(t, err, "other sessions are independent")
	otherUnlock()

	unlock()

	unlock, err = locker.TryLock(ctx, session)
	require.NoError(t, err)
	unlock()
}

func TestTurnLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewTurnLocker(client, 10*time.Second)
	ctx := context.Background()
	session := uuid.New()

	staleUnlock, err := locker.TryLock(ctx, session)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	freshUnlock, err := locker.TryLock(ctx, session)
	require.NoError(t, err)

	staleUnlock()

	_, err = locker.TryLock(ctx, session)
	assert.ErrorIs(t, err, domain.ErrTurnInProgress, "stale release must not drop the new holder's lock")

	freshUnlock()
	unlock, err := locker.TryLock(ctx, session)
	require.NoError(t, err)
	unlock()
}

func TestTurnLocker_RedisDown(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewTurnLocker(client, time.Minute)
	mr.Close()

	_, err := locker.TryLock(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
