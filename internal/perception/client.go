// Package perception turns utterances into intents. It owns the language
// model clients, the intent and entity extractor, and the task drafter.
package perception

import (
	"strings"

	"tasknerd/internal/types"
)

// LLMClient defines the interface for LLM providers.
type LLMClient = types.LLMClient

// requiresJSONOutput reports whether the prompt asks for a JSON reply, so
// clients can switch the provider into JSON mode.
func requiresJSONOutput(systemPrompt, userPrompt string) bool {
	markers := []string{
		"Respond with a single JSON object",
		"Output ONLY JSON",
		"application/json",
	}
	combined := systemPrompt + "\n" + userPrompt
	for _, marker := range markers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}
