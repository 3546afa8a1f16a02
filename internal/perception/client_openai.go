package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tasknerd/internal/logging"
)

// OpenAIClient implements LLMClient for OpenAI-compatible chat APIs.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time

	maxRetries int
	// retryBase scales the backoff between retries.
	retryBase time.Duration
}

// DefaultOpenAIConfig returns defaults for extraction workloads.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Timeout:     30 * time.Second,
		Temperature: 0.1,
	}
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	defaults := DefaultOpenAIConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &OpenAIClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		maxRetries: config.MaxRetries,
		retryBase:  time.Second,
	}
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.PerceptionDebug("[OpenAI] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	if c.apiKey == "" {
		logging.PerceptionError("[OpenAI] CompleteWithSystem: API key not configured")
		return "", fmt.Errorf("API key not configured")
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := OpenAIRequest{
		Model: c.model,
		Messages: []OpenAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   2048,
		Temperature: c.temperature,
	}
	if requiresJSONOutput(systemPrompt, userPrompt) {
		reqBody.ResponseFormat = &OpenAIResponseFormat{Type: "json_object"}
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// The extractor owns the re-prompt policy, so transport retries are
	// opt-in.
	var lastErr error

	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * c.retryBase):
			case <-ctx.Done():
				return "", fmt.Errorf("request cancelled: %w", ctx.Err())
			}
		}

		body, status, err := c.post(ctx, jsonData)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = err
			continue
		}

		if status == http.StatusTooManyRequests || status >= 500 {
			lastErr = fmt.Errorf("API request failed with status %d", status)
			continue
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", status, string(body))
		}

		var openaiResp OpenAIResponse
		if err := json.Unmarshal(body, &openaiResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if openaiResp.Error != nil {
			return "", fmt.Errorf("API error: %s", openaiResp.Error.Message)
		}
		if len(openaiResp.Choices) == 0 {
			logging.PerceptionError("[OpenAI] CompleteWithSystem: no completion returned")
			return "", fmt.Errorf("no completion returned")
		}

		response := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
		logging.Perception("[OpenAI] CompleteWithSystem: completed in %v response_len=%d", time.Since(startTime), len(response))
		return response, nil
	}

	logging.PerceptionError("[OpenAI] CompleteWithSystem: failed after %d attempt(s) in %v: %v", c.maxRetries+1, time.Since(startTime), lastErr)
	return "", fmt.Errorf("request failed after %d attempt(s): %w", c.maxRetries+1, lastErr)
}

func (c *OpenAIClient) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// SetModel changes the model used for completions.
func (c *OpenAIClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string {
	return c.model
}
