package deepseek

import (
	"github.com/Rrens/aniverse-chat/internal/config"
	"github.com/Rrens/aniverse-chat/internal/llm"
	"github.com/Rrens/aniverse-chat/internal/llm/openai"
)

// NewProvider creates a DeepSeek provider. DeepSeek speaks the OpenAI
// chat completions protocol.
func NewProvider(cfg config.DeepSeekConfig) llm.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	return openai.NewCompatible(openai.Options{
		Name:         "deepseek",
		APIKey:       cfg.APIKey,
		BaseURL:      baseURL,
		DefaultModel: cfg.Model,
		Models: []string{
			"deepseek-chat",
			"deepseek-reasoner",
		},
		Alternate: true,
	})
}
