package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"tasknerd/internal/logging"
)

// GeminiClient implements LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// DefaultGeminiConfig returns defaults for extraction workloads.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		Model:       "gemini-2.5-flash",
		Timeout:     30 * time.Second,
		Temperature: 0.1,
	}
}

// NewGeminiClient creates a Gemini client with default config.
func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a Gemini client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	defaults := DefaultGeminiConfig(config.APIKey)
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{
		client:      client,
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.PerceptionDebug("[Gemini] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(c.temperature)),
	}
	if requiresJSONOutput(systemPrompt, userPrompt) {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	if err != nil {
		logging.PerceptionError("[Gemini] CompleteWithSystem: failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	logging.Perception("[Gemini] CompleteWithSystem: completed in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}

// SetModel changes the model used for completions.
func (c *GeminiClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
