package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/herbia/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	var (
		p   Provider
		err error
	)

	switch provider {
	case "openai":
		p, err = NewOpenAIProvider(config)

	case "groq":
		p, err = NewGroqProvider(config)

	case "anthropic", "claude":
		p, err = NewAnthropicProvider(config)

	case "ollama":
		p, err = NewOllamaProvider(config)

	case "gemini", "google":
		p, err = NewGeminiProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, groq, anthropic, ollama, gemini)", config.Provider)
	}

	// Constructors return a typed nil pointer on error
	if err != nil {
		return nil, err
	}
	return p, nil
}

// APIKeyEnv names the environment variable holding the provider's API key
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

func missingKey(provider string) error {
	return fmt.Errorf("%s API key (%s): %w", provider, APIKeyEnv(provider), model.ErrMissingCredentials)
}
