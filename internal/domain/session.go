package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTitle is used when a session is created without a title
const DefaultSessionTitle = "New Chat"

// ChatSession represents a conversation thread owned by one principal
type ChatSession struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionStore owns chat sessions and their ordered messages.
//
// Implementations must serialize AppendMessage and DeleteSession per session
// and make DeleteSession remove the session and all of its messages as one
// atomic step. Missing sessions are reported with ErrSessionNotFound and
// infrastructure faults are wrapped with ErrStorageUnavailable.
type SessionStore interface {
	CreateSession(ctx context.Context, title, owner string) (*ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	ListSessions(ctx context.Context, owner string) ([]ChatSession, error)
	RenameSession(ctx context.Context, id uuid.UUID, title string) (*ChatSession, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role MessageRole, content string) (*Message, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
	Close() error
}

// NormalizeTitle trims the title and falls back to DefaultSessionTitle
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultSessionTitle
	}
	return title
}

// NextMessageTime returns the timestamp for a message appended to a session
// last updated at updatedAt. It never goes backwards, so message order and
// the updatedAt >= newest timestamp rule survive wall clock steps.
func NextMessageTime(now, updatedAt time.Time) time.Time {
	if now.Before(updatedAt) {
		return updatedAt
	}
	return now
}

// SortSessions orders sessions most recently active first.
// Ties on UpdatedAt fall back to CreatedAt, then ID, all descending.
func SortSessions(sessions []ChatSession) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
}
