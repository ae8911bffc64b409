package service

import (
	"context"
	"sync"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
)

// TurnLocker allows at most one turn per session to await the provider.
// TryLock never waits: a busy session yields domain.ErrTurnInProgress.
type TurnLocker interface {
	TryLock(ctx context.Context, sessionID uuid.UUID) (unlock func(), err error)
}

// LocalTurnLocker is a TurnLocker for a single server process
type LocalTurnLocker struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewLocalTurnLocker creates an in-process turn lock
func NewLocalTurnLocker() *LocalTurnLocker {
	return &LocalTurnLocker{inFlight: make(map[uuid.UUID]struct{})}
}

func (l *LocalTurnLocker) TryLock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inFlight[sessionID]; busy {
		return nil, domain.ErrTurnInProgress
	}
	l.inFlight[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inFlight, sessionID)
			l.mu.Unlock()
		})
	}, nil
}
