// Package perplexity provides the Perplexity chat completions provider
package perplexity

import (
	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/Rrens/aniverse-chat/internal/llm/openai"
)

// NewProvider creates a Perplexity provider. Requests are non-streaming,
// ask for no images or related questions, and carry the configured
// frequency and presence penalties.
func NewProvider(cfg config.PerplexityConfig) llm.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	frequency := cfg.FrequencyPenalty
	presence := cfg.PresencePenalty

	return openai.NewCompatible(openai.Options{
		Name:         "perplexity",
		APIKey:       cfg.APIKey,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Models: []string{
			"sonar",
			"sonar-pro",
			"sonar-reasoning",
		},
		Alternate:        true,
		FrequencyPenalty: &frequency,
		PresencePenalty:  &presence,
		DisableExtras:    true,
	})
}
