package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

const draftSystemPrompt = `You are a task generation assistant that creates structured task lists from user requests.
When users ask for help or guidance, break the request down into clear, actionable tasks.

Consider the following when generating tasks:
1. Break complex activities into smaller, manageable tasks
2. Assign priorities based on importance and dependencies
3. Give each task a clear, actionable description
4. Keep the tasks in a logical order

Respond with a single JSON object with this structure:
{
  "tasks": [
    {
      "title": "Clear, concise task title",
      "description": "What needs to be done and why",
      "priority": "high|medium|low",
      "estimated_duration": "in minutes"
    }
  ]
}

Priority guidelines:
- high: critical tasks that block others or are time-sensitive
- medium: important tasks that are not blocking
- low: nice-to-have or optional tasks

Output ONLY JSON. Keep the list manageable (typically 5-10 tasks). All fields are strings.`

// Drafter asks the model for a task breakdown of a goal.
type Drafter struct {
	client  LLMClient
	timeout time.Duration
}

// NewDrafter creates a drafter over client.
func NewDrafter(client LLMClient, timeout time.Duration) *Drafter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Drafter{client: client, timeout: timeout}
}

// Draft returns the drafted tasks for goal. A malformed reply is retried
// once with a stricter instruction; errors wrap types.ErrExtraction when
// the model's output could not be used.
func (d *Drafter) Draft(ctx context.Context, goal string) ([]types.TaskDraft, error) {
	timer := logging.StartTimer(logging.CategoryPerception, "Draft")
	defer timer.Stop()

	if d.client == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}

	drafts, err := d.attempt(ctx, draftSystemPrompt, goal)
	if err == nil || !errors.Is(err, types.ErrExtraction) {
		return drafts, err
	}
	logging.PerceptionDebug("malformed draft reply, re-prompting: %v", err)
	return d.attempt(ctx, draftSystemPrompt+"\n"+`Your previous reply could not be used. Reply with the JSON object only, containing a non-empty "tasks" array.`, goal)
}

func (d *Drafter) attempt(ctx context.Context, sys, goal string) ([]types.TaskDraft, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.client.CompleteWithSystem(callCtx, sys, goal)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	drafts, err := ParseDrafts(raw)
	if err != nil {
		return nil, err
	}
	logging.Perception("drafted %d tasks", len(drafts))
	return drafts, nil
}

// ParseDrafts validates a drafting reply. Invalid priorities become medium;
// a task without a title makes the whole reply invalid.
func ParseDrafts(raw string) ([]types.TaskDraft, error) {
	var reply struct {
		Tasks []struct {
			Title             string          `json:"title"`
			Description       string          `json:"description"`
			Priority          string          `json:"priority"`
			EstimatedDuration json.RawMessage `json:"estimated_duration"`
		} `json:"tasks"`
	}
	if err := decodeFirstObject(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}
	if len(reply.Tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks in reply", types.ErrExtraction)
	}

	out := make([]types.TaskDraft, 0, len(reply.Tasks))
	for i, t := range reply.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: task %d has no title", types.ErrExtraction, i+1)
		}
		p := types.Priority(strings.ToLower(strings.TrimSpace(t.Priority)))
		if !p.Valid() {
			p = types.PriorityMedium
		}
		out = append(out, types.TaskDraft{
			Title:             title,
			Description:       strings.TrimSpace(t.Description),
			Priority:          p,
			EstimatedDuration: durationText(t.EstimatedDuration),
		})
	}
	return out, nil
}

// durationText accepts the duration as a string or a bare number.
func durationText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
