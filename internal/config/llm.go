package config

import "fmt"

// LLMConfig configures the model used for extraction, drafting and
// optional reply rephrasing.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"` // OpenAI-compatible endpoints only
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "gemini"}

// Validate checks provider and credentials.
func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or GEMINI_API_KEY)")
	}
	if !contains(ValidProviders, c.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.Provider, ValidProviders)
	}
	return nil
}
