package llm

import (
	"strings"

	"github.com/Rrens/aniverse-chat/internal/domain"
)

// BuildContext assembles the messages sent upstream for one turn: the
// system prompt, then the last window messages of history in order.
// Older messages are dropped, never summarized.
func BuildContext(history []domain.Message, window int, systemPrompt string) []ChatMessage {
	if window < 1 {
		window = 1
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	if prompt := strings.TrimSpace(systemPrompt); prompt != "" {
		messages = append(messages, ChatMessage{Role: domain.RoleSystem, Content: prompt})
	}
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}
