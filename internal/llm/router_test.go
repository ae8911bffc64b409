package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/aniverse-chat/internal/llm"
)

type stubProvider struct {
	name       string
	configured bool
}

func (s stubProvider) Name() string              { return s.name }
func (s stubProvider) AvailableModels() []string { return []string{s.name + "-model"} }
func (s stubProvider) DefaultModel() string      { return s.name + "-model" }
func (s stubProvider) IsConfigured() bool        { return s.configured }
func (s stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	return &llm.Completion{Text: "ok"}, nil
}

func TestRouter(t *testing.T) {
	r := llm.NewRouter("perplexity")
	r.RegisterProvider(stubProvider{name: "perplexity", configured: false})
	r.RegisterProvider(stubProvider{name: "ollama", configured: true})

	if _, err := r.GetProvider(""); !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("default provider without key should be ErrNotConfigured, got %v", err)
	}
	if _, err := r.GetProvider("missing"); !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("unknown provider should be ErrNotConfigured, got %v", err)
	}

	p, err := r.GetProvider("ollama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("got provider %q", p.Name())
	}

	if got := r.ListProviders(); len(got) != 1 || got[0] != "ollama" {
		t.Errorf("ListProviders = %v", got)
	}

	infos := r.GetProvidersInfo()
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	if infos[0].Name != "ollama" || infos[1].Name != "perplexity" {
		t.Errorf("infos not sorted: %+v", infos)
	}
	if !infos[1].Default || infos[1].Configured {
		t.Errorf("perplexity info = %+v", infos[1])
	}
}
