package llm

import (
	"fmt"

	"github.com/coursepilot/coursepilot/internal/config"
)

// NewClient builds the provider client selected by configuration.
func NewClient(cfg config.Config) (Client, string, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel), cfg.AnthropicModel, nil

	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), cfg.OpenAIModel, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: anthropic, openai)", cfg.LLMProvider)
	}
}
