package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tasknerd/internal/logging"
	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	Timeout   time.Duration // per model call
	FastPaths bool
}

// Extractor maps an utterance to an Intent with raw slots. It never
// fails: transport errors, timeouts and repeated malformed replies all
// degrade to the Unknown intent with the raw text preserved.
type Extractor struct {
	client    LLMClient
	timeout   time.Duration
	fastPaths atomic.Bool
}

// NewExtractor creates an extractor over client.
func NewExtractor(client LLMClient, opts ExtractorOptions) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	e := &Extractor{client: client, timeout: opts.Timeout}
	e.fastPaths.Store(opts.FastPaths)
	return e
}

// SetFastPaths toggles keyword fast paths (config reload).
func (e *Extractor) SetFastPaths(on bool) { e.fastPaths.Store(on) }

// Extract classifies utt.
func (e *Extractor) Extract(ctx context.Context, utt types.Utterance, sctx *session.Context) types.Intent {
	timer := logging.StartTimer(logging.CategoryPerception, "Extract")
	defer timer.Stop()

	text := strings.TrimSpace(utt.Text)
	if text == "" {
		return types.UnknownIntent(utt.Text)
	}

	if e.fastPaths.Load() {
		if intent, ok := fastPath(text); ok {
			logging.PerceptionDebug("fast path: %q -> %s", text, intent.Kind)
			return intent
		}
	}

	if e.client == nil {
		logging.PerceptionWarn("no LLM client configured; %q is Unknown", text)
		return types.UnknownIntent(text)
	}

	sys := extractionSystemPrompt()
	user := extractionUserPrompt(text, sctx)

	intent, err := e.attempt(ctx, sys, user, text)
	if err == nil {
		return intent
	}
	if !errors.Is(err, types.ErrExtraction) {
		// Transport failure or timeout: no second chance.
		logging.PerceptionWarn("extraction failed for session %s: %v", utt.SessionID, err)
		return types.UnknownIntent(text)
	}

	logging.PerceptionDebug("malformed extraction, re-prompting: %v", err)
	intent, err = e.attempt(ctx, sys+"\n"+strictFormatInstruction, user, text)
	if err != nil {
		logging.PerceptionWarn("extraction failed twice for session %s: %v", utt.SessionID, err)
		return types.UnknownIntent(text)
	}
	return intent
}

func (e *Extractor) attempt(ctx context.Context, sys, user, text string) (types.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.client.CompleteWithSystem(callCtx, sys, user)
	if err != nil {
		return types.Intent{}, fmt.Errorf("model call: %w", err)
	}
	intent, err := ParseIntent(raw)
	if err != nil {
		return types.Intent{}, err
	}
	intent.Raw = text
	logging.Perception("extracted %s slots=%v", intent.Kind, intent.SlotNames())
	return intent, nil
}

// modelReply is the wire shape the model is asked to produce.
type modelReply struct {
	Intent string                     `json:"intent"`
	Slots  map[string]json.RawMessage `json:"slots"`
}

// ParseIntent validates a model reply against the intent schemas. Errors
// wrap types.ErrExtraction.
func ParseIntent(raw string) (types.Intent, error) {
	var reply modelReply
	if err := decodeFirstObject(raw, &reply); err != nil {
		return types.Intent{}, fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}

	kind, ok := types.ParseIntentKind(reply.Intent)
	if !ok {
		return types.Intent{}, fmt.Errorf("%w: unknown intent label %q", types.ErrExtraction, reply.Intent)
	}
	intent := types.Intent{Kind: kind}
	schema, hasSchema := types.SchemaFor(kind)

	for name, value := range reply.Slots {
		slot := types.SlotName(strings.ToLower(strings.TrimSpace(name)))
		if !hasSchema || !schema.Has(slot) {
			logging.PerceptionDebug("dropping undeclared slot %q for %s", name, kind)
			continue
		}
		s, present, err := scalarString(value)
		if err != nil {
			return types.Intent{}, fmt.Errorf("%w: slot %q: %v", types.ErrExtraction, name, err)
		}
		if !present {
			continue
		}
		if intent.Slots == nil {
			intent.Slots = make(map[types.SlotName]string)
		}
		intent.Slots[slot] = s
	}
	return intent, nil
}

// scalarString stringifies a JSON scalar. null and blank strings report
// present=false; objects and arrays are errors.
func scalarString(raw json.RawMessage) (s string, present bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	switch trimmed[0] {
	case '{', '[':
		return "", false, fmt.Errorf("nested value not allowed")
	case '"':
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		s = strings.TrimSpace(s)
		return s, s != "", nil
	default:
		// numbers and booleans keep their JSON spelling
		return string(trimmed), true, nil
	}
}
