package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/domain"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/Rrens/aniverse-chat/internal/llm/openai"
)

func conversation() llm.CompletionRequest {
	return llm.CompletionRequest{
		Messages: []llm.ChatMessage{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleUser, Content: "Recommend a shonen"},
		},
		MaxTokens:   1000,
		Temperature: 0.2,
		TopP:        0.9,
	}
}

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"Try Hunter x Hunter."}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-4o-mini"})

	resp, err := p.Complete(context.Background(), conversation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Try Hunter x Hunter." || resp.TokensUsed != 42 || resp.Model != "gpt-4o-mini" {
		t.Errorf("unexpected completion %+v", resp)
	}

	if got["model"] != "gpt-4o-mini" || got["stream"] != false || got["max_tokens"] != float64(1000) {
		t.Errorf("unexpected request %v", got)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("system message should be sent as-is, got %v", first)
	}
	if _, ok := got["frequency_penalty"]; ok {
		t.Error("openai should not send perplexity-only fields")
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"upstream 500", http.StatusInternalServerError, `{"error":"boom"}`, nil},
		{"empty choices", http.StatusOK, `{"choices":[]}`, llm.ErrEmptyCompletion},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, llm.ErrEmptyCompletion},
		{"malformed json", http.StatusOK, `{"choices":`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := openai.NewCompatible(openai.Options{Name: "openai", APIKey: "k", BaseURL: srv.URL, Models: []string{"m"}})
			_, err := p.Complete(context.Background(), conversation())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.status != http.StatusOK {
				var statusErr *llm.StatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
					t.Errorf("expected StatusError %d, got %v", tt.status, err)
				}
			}
		})
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	p := openai.NewProvider(config.OpenAIConfig{})
	if p.IsConfigured() {
		t.Fatal("provider without key must not be configured")
	}
	_, err := p.Complete(context.Background(), conversation())
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := openai.NewCompatible(openai.Options{Name: "openai", APIKey: "k", BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, conversation())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
