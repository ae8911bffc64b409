package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const turnLockPrefix = keyPrefix + "turn:"

// releaseScript deletes the lock only if it still carries our token,
// so an expired lock taken over by another replica is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// TurnLocker allows one in-flight turn per session across server replicas
type TurnLocker struct {
	client *Client
	ttl    time.Duration
}

// NewTurnLocker creates a lock whose entries expire after ttl, which should
// exceed the provider timeout so a crashed holder cannot block a session forever
func NewTurnLocker(client *Client, ttl time.Duration) *TurnLocker {
	return &TurnLocker{client: client, ttl: ttl}
}

// TryLock takes the session's turn lock or fails with domain.ErrTurnInProgress
func (l *TurnLocker) TryLock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	key := turnLockPrefix + sessionID.String()
	token := uuid.NewString()

	ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire turn lock: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if !ok {
		return nil, domain.ErrTurnInProgress
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to release turn lock")
		}
	}, nil
}
