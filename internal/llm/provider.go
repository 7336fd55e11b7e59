package llm

import (
	"context"
	"time"

	"github.com/ppiankov/herbia/internal/model"
)

// Provider defines the interface for generative text backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate runs one prompt and returns the raw model text
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Check verifies the provider is configured and reachable
	Check(ctx context.Context) error
}

// GenerateRequest is one prompt sent to a provider
type GenerateRequest struct {
	// System carries the standing instructions (role, output contract)
	System string

	// Prompt is the user turn
	Prompt string

	// JSON asks the backend for a JSON-only response where supported
	JSON bool

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length (0 = configured default)
	MaxTokens int
}

// GenerateResponse is the raw provider output
type GenerateResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "groq", "anthropic", "ollama", "gemini", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (Ollama, proxies, tests)
	BaseURL string

	// Timeout for one API request
	Timeout time.Duration

	MaxTokens   int
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "",
		Timeout:     30 * time.Second,
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// ConfigFromModel converts model.LLMConfig (plus outbound proxy settings) to llm.Config
func ConfigFromModel(c model.LLMConfig, h model.HTTPConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = c.Provider
	cfg.Model = c.Model
	cfg.APIKey = c.APIKey
	cfg.BaseURL = c.BaseURL
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.MaxTokens > 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	if c.Temperature > 0 {
		cfg.Temperature = c.Temperature
	}
	cfg.HTTPProxy = h.HTTPProxy
	cfg.HTTPSProxy = h.HTTPSProxy
	cfg.NoProxy = h.NoProxy
	return cfg
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

func (c Config) maxTokens(override int) int {
	if override > 0 {
		return override
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) model(override, fallback string) string {
	if override != "" {
		return override
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
