package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/llm"
)

// Options configures an OpenAI-compatible chat completions endpoint
type Options struct {
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string

	// Alternate merges same-role runs before sending, for APIs that
	// reject consecutive user messages
	Alternate bool

	FrequencyPenalty *float64
	PresencePenalty  *float64
	// DisableExtras sends return_images/return_related_questions=false
	DisableExtras bool

	Client *http.Client
}

// Provider implements llm.Provider for OpenAI and APIs speaking its protocol
type Provider struct {
	opts   Options
	client *http.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(cfg config.OpenAIConfig) llm.Provider {
	return NewCompatible(Options{
		Name:         "openai",
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Models: []string{
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
			"gpt-3.5-turbo",
		},
	})
}

// NewCompatible creates a provider for any OpenAI-compatible endpoint
func NewCompatible(opts Options) *Provider {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.DefaultModel == "" && len(opts.Models) > 0 {
		opts.DefaultModel = opts.Models[0]
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Provider{opts: opts, client: client}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.opts.Name
}

// AvailableModels returns list of supported models
func (p *Provider) AvailableModels() []string {
	return p.opts.Models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.opts.DefaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.opts.APIKey != ""
}

type chatRequest struct {
	Model                  string        `json:"model"`
	Messages               []chatMessage `json:"messages"`
	Temperature            *float64      `json:"temperature,omitempty"`
	TopP                   *float64      `json:"top_p,omitempty"`
	MaxTokens              int           `json:"max_tokens,omitempty"`
	FrequencyPenalty       *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty        *float64      `json:"presence_penalty,omitempty"`
	ReturnImages           *bool         `json:"return_images,omitempty"`
	ReturnRelatedQuestions *bool         `json:"return_related_questions,omitempty"`
	Stream                 bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete generates the next assistant message
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("%s: %w", p.opts.Name, llm.ErrNotConfigured)
	}

	model := req.Model
	if model == "" {
		model = p.opts.DefaultModel
	}

	messages := req.Messages
	if p.opts.Alternate {
		messages = llm.Alternate(messages)
	}

	chatReq := chatRequest{
		Model:            model,
		Messages:         make([]chatMessage, 0, len(messages)),
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: p.opts.FrequencyPenalty,
		PresencePenalty:  p.opts.PresencePenalty,
		Stream:           false,
	}
	if req.Temperature > 0 {
		chatReq.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		chatReq.TopP = &req.TopP
	}
	if p.opts.DisableExtras {
		off := false
		chatReq.ReturnImages = &off
		chatReq.ReturnRelatedQuestions = &off
	}
	for _, m := range messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.opts.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := llm.CheckResponse(p.opts.Name, resp); err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("no response from %s: %w", p.opts.Name, llm.ErrEmptyCompletion)
	}

	if chatResp.Model != "" {
		model = chatResp.Model
	}

	return &llm.Completion{
		Text:       chatResp.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: chatResp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
