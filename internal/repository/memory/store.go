// Package memory implements domain.SessionStore in process memory.
//
// The maps held by Store are the store itself, not a cache in front of one:
// everything lives for the lifetime of the process and is lost on restart.
// Use one of the durable backends when conversations must survive restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/google/uuid"
)

// sessionEntry holds one session and its messages.
// mu serializes appends, renames and the delete of this session.
type sessionEntry struct {
	mu       sync.RWMutex
	session  domain.ChatSession
	messages []domain.Message
	deleted  bool
}

// Store implements domain.SessionStore
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory store
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[uuid.UUID]*sessionEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CreateSession(ctx context.Context, title, owner string) (*domain.ChatSession, error) {
	now := s.now().UTC()
	entry := &sessionEntry{
		session: domain.ChatSession{
			ID:        uuid.New(),
			Title:     domain.NormalizeTitle(title),
			Owner:     owner,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	s.mu.Lock()
	s.sessions[entry.session.ID] = entry
	s.mu.Unlock()

	session := entry.session
	return &session, nil
}

// entry looks up a live session entry. The caller must lock the entry and
// re-check deleted before trusting its contents.
func (s *Store) entry(id uuid.UUID) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*domain.ChatSession, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, domain.ErrSessionNotFound
	}
	session := e.session
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context, owner string) ([]domain.ChatSession, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sessions := make([]domain.ChatSession, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		if !e.deleted && e.session.Owner == owner {
			sessions = append(sessions, e.session)
		}
		e.mu.RUnlock()
	}

	domain.SortSessions(sessions)
	return sessions, nil
}

func (s *Store) RenameSession(ctx context.Context, id uuid.UUID, title string) (*domain.ChatSession, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrSessionNotFound
	}
	e.session.Title = domain.NormalizeTitle(title)
	session := e.session
	return &session, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, content string) (*domain.Message, error) {
	if err := domain.ValidateMessage(role, content); err != nil {
		return nil, err
	}

	e, ok := s.entry(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrSessionNotFound
	}

	msg := domain.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: domain.NextMessageTime(s.now().UTC(), e.session.UpdatedAt),
	}
	e.messages = append(e.messages, msg)
	e.session.UpdatedAt = msg.Timestamp

	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	e, ok := s.entry(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return nil, domain.ErrSessionNotFound
	}

	messages := make([]domain.Message, len(e.messages))
	copy(messages, e.messages)
	return messages, nil
}

// DeleteSession unlinks the session and drops its messages. The entry is
// flagged under its own lock, so a concurrent append either finished before
// the delete or fails with ErrSessionNotFound, and readers never observe a
// partially deleted conversation.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.ErrSessionNotFound
	}
	e.deleted = true
	e.messages = nil
	return nil
}

// Ping always succeeds for the in-memory store
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close drops all sessions
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[uuid.UUID]*sessionEntry)
	return nil
}
