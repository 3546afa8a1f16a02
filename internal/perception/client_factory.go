package perception

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tasknerd/internal/config"
)

// ProviderConfig holds the resolved provider and API key.
type ProviderConfig struct {
	Provider    Provider
	APIKey      string
	Model       string // Optional model override
	BaseURL     string // OpenAI-compatible endpoints only
	Timeout     time.Duration
	Temperature float64
}

// ProviderConfigFrom resolves the provider settings of cfg.
func ProviderConfigFrom(cfg *config.Config) *ProviderConfig {
	pc := &ProviderConfig{
		Provider:    Provider(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.GetLLMTimeout(),
		Temperature: cfg.LLM.Temperature,
	}
	// The default model name belongs to the default provider.
	if pc.Provider == ProviderGemini && strings.HasPrefix(pc.Model, "gpt-") {
		pc.Model = ""
	}
	return pc
}

// DetectProvider checks the config file first, then environment variables.
// Priority: config file > env vars (GEMINI > OPENAI)
func DetectProvider(cfg *config.Config) (*ProviderConfig, error) {
	if cfg != nil && cfg.LLM.APIKey != "" {
		return ProviderConfigFrom(cfg), nil
	}

	providers := []struct {
		envVar   string
		provider Provider
	}{
		{"GEMINI_API_KEY", ProviderGemini},
		{"OPENAI_API_KEY", ProviderOpenAI},
	}
	for _, p := range providers {
		if key := os.Getenv(p.envVar); key != "" {
			return &ProviderConfig{Provider: p.provider, APIKey: key}, nil
		}
	}

	return nil, fmt.Errorf("no API key found; configure llm.api_key or set one of: OPENAI_API_KEY, GEMINI_API_KEY")
}

// NewClientFromEnv creates an LLM client based on config file or environment variables.
func NewClientFromEnv(cfg *config.Config) (LLMClient, error) {
	pc, err := DetectProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientFromConfig(pc)
}

// NewClientFromConfig creates an LLM client from a provider config.
func NewClientFromConfig(pc *ProviderConfig) (LLMClient, error) {
	switch pc.Provider {
	case ProviderOpenAI:
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:      pc.APIKey,
			BaseURL:     pc.BaseURL,
			Model:       pc.Model,
			Timeout:     pc.Timeout,
			Temperature: pc.Temperature,
		}), nil

	case ProviderGemini:
		return NewGeminiClientWithConfig(GeminiConfig{
			APIKey:      pc.APIKey,
			Model:       pc.Model,
			Timeout:     pc.Timeout,
			Temperature: pc.Temperature,
		})

	default:
		return nil, fmt.Errorf("unknown provider: %s", pc.Provider)
	}
}
