package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ModelNamer is implemented by clients that can report their model name.
type ModelNamer interface {
	GetModel() string
}
