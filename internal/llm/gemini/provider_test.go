package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/google/generative-ai-go/genai"
)

func TestSplitConversation(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: domain.RoleSystem, Content: "be an otaku"},
		{Role: domain.RoleUser, Content: "best mecha?"},
		{Role: domain.RoleAssistant, Content: "Gurren Lagann"},
		{Role: domain.RoleUser, Content: "why?"},
	}

	system, history, last, err := splitConversation(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if system != "be an otaku" {
		t.Errorf("system = %q", system)
	}
	if last != "why?" {
		t.Errorf("last = %q", last)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Errorf("roles = %s, %s", history[0].Role, history[1].Role)
	}
	if text, ok := history[1].Parts[0].(genai.Text); !ok || string(text) != "Gurren Lagann" {
		t.Errorf("unexpected history part %#v", history[1].Parts[0])
	}
}

func TestSplitConversation_RequiresTrailingUser(t *testing.T) {
	_, _, _, err := splitConversation([]llm.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	})
	if err == nil {
		t.Fatal("expected error for conversation ending with assistant")
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	p := NewProvider(config.GeminiConfig{})
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Sugoi "), genai.Text("desu")}},
		}},
	}
	if got := responseText(resp); got != "Sugoi desu" {
		t.Errorf("responseText = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response should give empty text, got %q", got)
	}
}
