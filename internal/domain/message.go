package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Persisted reports whether messages with this role may be stored.
// System messages are only synthesized for upstream calls.
func (r MessageRole) Persisted() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents one turn of a chat session
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"sessionId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ValidateMessage checks role and content before anything is persisted
func ValidateMessage(role MessageRole, content string) error {
	if !role.Persisted() {
		return ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return ErrInvalidContent
	}
	// text columns reject NUL bytes and invalid UTF-8
	if strings.ContainsRune(content, 0) {
		return fmt.Errorf("%w: NUL character not allowed", ErrInvalidContent)
	}
	if !utf8.ValidString(content) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidContent)
	}
	return nil
}
