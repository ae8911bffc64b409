package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Rrens/aniverse-chat/internal/domain"
)

// ErrNotConfigured is returned when a provider has no credentials
var ErrNotConfigured = errors.New("provider not configured")

// ErrEmptyCompletion is returned when the provider answered without usable text
var ErrEmptyCompletion = errors.New("empty completion")

// ChatMessage is one role-tagged message sent upstream
type ChatMessage struct {
	Role    domain.MessageRole
	Content string
}

// CompletionRequest contains chat completion parameters.
// Zero values fall back to the provider's defaults.
type CompletionRequest struct {
	Messages    []ChatMessage
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Completion contains the generated reply
type Completion struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// AvailableModels returns list of supported models
	AvailableModels() []string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Complete generates the next assistant message. It never streams.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// StatusError reports a non-2xx answer from a provider. Body is kept for
// logs only and must not be shown to end users.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

// CheckResponse turns a non-2xx response into a *StatusError
func CheckResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// SplitSystem separates system messages, joined, from the conversation
func SplitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var system []string
	rest := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// Alternate prepares a conversation for APIs that require strictly
// alternating user/assistant turns starting with the user. Leading
// assistant messages are dropped and consecutive messages from the same
// role are joined, which happens when an earlier turn got no reply.
// System messages stay at the front.
func Alternate(messages []ChatMessage) []ChatMessage {
	system, rest := SplitSystem(messages)

	out := make([]ChatMessage, 0, len(messages))
	if system != "" {
		out = append(out, ChatMessage{Role: domain.RoleSystem, Content: system})
	}

	start := len(out)
	for _, m := range rest {
		if len(out) == start && m.Role != domain.RoleUser {
			continue
		}
		if last := len(out) - 1; last >= start && out[last].Role == m.Role {
			out[last].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
