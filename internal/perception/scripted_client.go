package perception

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptedCall records one request a ScriptedClient received.
type ScriptedCall struct {
	System string
	User   string
}

// ScriptedClient is a deterministic LLMClient. Responses are consumed in
// order; Route entries answer by substring of the user prompt instead.
// Used by tests across the interpreter packages.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	routes    []scriptedRoute
	calls     []ScriptedCall
	fallback  string
}

type scriptedRoute struct {
	contains string
	response string
}

// NewScriptedClient returns a client that answers with responses in order.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Push queues more responses.
func (c *ScriptedClient) Push(responses ...string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, responses...)
	return c
}

// PushError queues an error; errors are returned before any response.
func (c *ScriptedClient) PushError(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	return c
}

// Route answers any user prompt containing substr with response. Routes
// are checked after queued errors and before queued responses.
func (c *ScriptedClient) Route(substr, response string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, scriptedRoute{contains: substr, response: response})
	return c
}

// Fallback sets the answer used when nothing else matches.
func (c *ScriptedClient) Fallback(response string) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = response
	return c
}

// Complete implements LLMClient.
func (c *ScriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.
func (c *ScriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, ScriptedCall{System: systemPrompt, User: userPrompt})

	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return "", err
	}
	for _, r := range c.routes {
		if strings.Contains(userPrompt, r.contains) {
			return r.response, nil
		}
	}
	if len(c.responses) > 0 {
		out := c.responses[0]
		c.responses = c.responses[1:]
		return out, nil
	}
	if c.fallback != "" {
		return c.fallback, nil
	}
	return "", fmt.Errorf("scripted client: no response left for %q", truncate(userPrompt, 60))
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedClient) Calls() []ScriptedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ScriptedCall(nil), c.calls...)
}

// GetModel implements types.ModelNamer.
func (c *ScriptedClient) GetModel() string { return "scripted" }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
