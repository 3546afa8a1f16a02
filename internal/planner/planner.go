// Package planner turns an Intent into exactly one of: a fully resolved
// OperationPlan, a Clarification for the first unresolved slot, or a
// PlanningError. It never touches the store except through the resolver.
package planner

import (
	"context"
	"fmt"
	"strings"

	"tasknerd/internal/logging"
	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

// Resolver is the reference resolution the planner depends on.
type Resolver interface {
	Resolve(ctx context.Context, kind types.EntityKind, raw string, sctx *session.Context) (types.ResolvedEntity, error)
}

// Options configures a Planner.
type Options struct {
	ListLimit int // default LIMIT on ListTasks plans; 0 = unlimited
}

// Planner implements the Operation Planner.
type Planner struct {
	res       Resolver
	listLimit int
}

// New creates a Planner.
func New(res Resolver, opts Options) *Planner {
	return &Planner{res: res, listLimit: opts.ListLimit}
}

// Plan plans intent against the session context. The error is reserved
// for store failures during resolution.
func (p *Planner) Plan(ctx context.Context, intent types.Intent, sctx *session.Context) (types.PlanOutcome, error) {
	timer := logging.StartTimer(logging.CategoryPlanner, "Plan "+string(intent.Kind))
	defer timer.Stop()

	schema, ok := types.SchemaFor(intent.Kind)
	if !ok {
		return &types.PlanningError{Intent: intent.Kind, Reason: "the request was not understood"}, nil
	}

	b := &build{
		p:        p,
		intent:   normalizeSlots(intent),
		schema:   schema,
		sctx:     sctx,
		resolved: make(map[types.SlotName]types.ResolvedEntity),
	}

	// Intents with their own shape of required input check it first.
	if out := b.precheck(); out != nil {
		return b.finish(out), nil
	}

	if err := b.resolveAll(ctx); err != nil {
		return nil, err
	}
	if c := b.firstFailure(); c != nil {
		return b.finish(c), nil
	}
	out, err := b.plan(ctx)
	if err != nil {
		return nil, err
	}
	return b.finish(out), nil
}

// normalizeSlots trims values and drops empty slots.
func normalizeSlots(in types.Intent) types.Intent {
	out := in.Clone()
	for k, v := range out.Slots {
		v = strings.TrimSpace(v)
		if v == "" {
			delete(out.Slots, k)
			continue
		}
		out.Slots[k] = v
	}
	return out
}

// build carries one planning pass.
type build struct {
	p        *Planner
	intent   types.Intent
	schema   types.IntentSchema
	sctx     *session.Context
	resolved map[types.SlotName]types.ResolvedEntity

	// skip names slots that the intent handles without resolution
	// (scope-driven deletes, id lists, creatable tags).
	skip map[types.SlotName]bool
	// lenient names slots whose NotFound is a valid outcome.
	lenient map[types.SlotName]bool
}

func (b *build) finish(out types.PlanOutcome) types.PlanOutcome {
	switch o := out.(type) {
	case *types.OperationPlan:
		logging.Planner("%s -> plan %s bulk=%v confirm=%v", b.intent.Kind, o.Op, o.Bulk, o.RequiresConfirmation)
	case *types.Clarification:
		logging.Planner("%s -> clarify slot=%s reason=%s candidates=%d", b.intent.Kind, o.Slot, o.Reason, len(o.Candidates))
	case *types.PlanningError:
		logging.Planner("%s -> planning error: %s", b.intent.Kind, o.Reason)
	}
	return out
}

func (b *build) slot(name types.SlotName) string { return b.intent.Slot(name) }

func (b *build) has(name types.SlotName) bool { return b.intent.Slot(name) != "" }

func (b *build) scope() string {
	switch strings.ToLower(b.slot(types.SlotScope)) {
	case "all", "every", "everything", "all tasks", "all projects":
		return types.ScopeAll
	case "these", "those", "them", "these tasks", "those tasks", "listed":
		return types.ScopeThese
	}
	return ""
}

func (b *build) skipSlot(name types.SlotName) {
	if b.skip == nil {
		b.skip = make(map[types.SlotName]bool)
	}
	b.skip[name] = true
}

func (b *build) allowNotFound(name types.SlotName) {
	if b.lenient == nil {
		b.lenient = make(map[types.SlotName]bool)
	}
	b.lenient[name] = true
}

// resolveAll resolves every filled entity slot in declaration order.
func (b *build) resolveAll(ctx context.Context) error {
	for _, sp := range b.schema.Slots {
		if sp.Kind == types.EntityNone || b.skip[sp.Name] || !b.has(sp.Name) {
			continue
		}
		e, err := b.p.res.Resolve(ctx, sp.Kind, b.slot(sp.Name), b.sctx)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", sp.Name, err)
		}
		b.resolved[sp.Name] = e
	}
	return nil
}

// firstFailure applies the clarification order: the first ambiguous slot,
// then the first missing or unresolved required slot, then the first
// unresolved optional slot the user did fill in.
func (b *build) firstFailure() *types.Clarification {
	for _, sp := range b.schema.Slots {
		if e, ok := b.resolved[sp.Name]; ok && e.Status == types.Ambiguous {
			return b.clarify(sp, e)
		}
	}
	for _, sp := range b.schema.Slots {
		if !sp.Required || b.skip[sp.Name] {
			continue
		}
		if !b.has(sp.Name) {
			return b.ask(sp)
		}
		if e, ok := b.resolved[sp.Name]; ok && e.Status == types.NotFound && !b.lenient[sp.Name] {
			return b.clarify(sp, e)
		}
	}
	for _, sp := range b.schema.Slots {
		if e, ok := b.resolved[sp.Name]; ok && e.Status == types.NotFound && !b.lenient[sp.Name] {
			return b.clarify(sp, e)
		}
	}
	return nil
}

// partialWithout returns the intent minus slot, for the continuation turn.
func (b *build) partialWithout(slot types.SlotName) types.Intent {
	partial := b.intent.Clone()
	delete(partial.Slots, slot)
	return partial
}

func (b *build) ask(sp types.SlotSpec) *types.Clarification {
	return &types.Clarification{
		Slot:     sp.Name,
		Kind:     sp.Kind,
		Reason:   types.NotFound,
		Question: missingQuestion(b.intent.Kind, sp),
		Partial:  b.partialWithout(sp.Name),
	}
}

func (b *build) clarify(sp types.SlotSpec, e types.ResolvedEntity) *types.Clarification {
	c := &types.Clarification{
		Slot:    sp.Name,
		Kind:    sp.Kind,
		Reason:  e.Status,
		Partial: b.partialWithout(sp.Name),
	}
	if e.Status == types.Ambiguous {
		c.Candidates = append([]types.Candidate(nil), e.Candidates...)
		c.Question = ambiguousQuestion(sp, e)
	} else {
		c.Question = notFoundQuestion(sp, e)
	}
	return c
}
