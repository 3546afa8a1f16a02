package perception

import "time"

// defaultSystemPrompt is used when a caller passes an empty system prompt.
const defaultSystemPrompt = "You are the command interpreter of a task manager. Respond in English. Be concise."

// =============================================================================
// PROVIDERS
// =============================================================================

// Provider names an LLM backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	// MaxRetries is the number of extra attempts after a 429, a 5xx or a
	// transport error. Zero sends each request once.
	MaxRetries int
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// =============================================================================
// OPENAI WIRE TYPES
// =============================================================================

// OpenAIMessage represents a chat message.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIResponseFormat selects JSON mode.
type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

// OpenAIRequest represents a chat completion request.
type OpenAIRequest struct {
	Model          string                `json:"model"`
	Messages       []OpenAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *OpenAIResponseFormat `json:"response_format,omitempty"`
}

// OpenAIResponse represents a chat completion response.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}
