// Package interpreter runs one conversational turn end to end:
// extraction, clarification continuation, planning, execution and reply
// synthesis, serialized per session by the context tracker.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasknerd/internal/articulation"
	"tasknerd/internal/logging"
	"tasknerd/internal/resolve"
	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

// Extractor classifies an utterance.
type Extractor interface {
	Extract(ctx context.Context, utt types.Utterance, sctx *session.Context) types.Intent
}

// Planner turns an intent into a plan, a clarification or a planning error.
type Planner interface {
	Plan(ctx context.Context, intent types.Intent, sctx *session.Context) (types.PlanOutcome, error)
}

// Executor runs a plan.
type Executor interface {
	Execute(ctx context.Context, plan *types.OperationPlan, confirmed bool) (*types.ExecutionResult, error)
}

// Synthesizer builds the reply and the context mutation of a turn.
type Synthesizer interface {
	Respond(ctx context.Context, out articulation.Outcome, sctx *session.Context) (types.Reply, session.Mutation)
}

// Deps are the pipeline stages.
type Deps struct {
	Tracker     *session.Tracker
	Extractor   Extractor
	Planner     Planner
	Executor    Executor
	Synthesizer Synthesizer
	Now         func() time.Time
}

// Request is one utterance addressed to a session.
type Request struct {
	SessionID string
	Text      string
	// Confirm is the explicit confirmation signal for a held bulk plan.
	Confirm bool
}

// Interpreter wires the stages together.
type Interpreter struct {
	tracker   *session.Tracker
	extractor Extractor
	planner   Planner
	executor  Executor
	synth     Synthesizer
	now       func() time.Time
}

// New creates an Interpreter.
func New(d Deps) *Interpreter {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Interpreter{
		tracker:   d.Tracker,
		extractor: d.Extractor,
		planner:   d.Planner,
		executor:  d.Executor,
		synth:     d.Synthesizer,
		now:       d.Now,
	}
}

// Tracker returns the session tracker.
func (in *Interpreter) Tracker() *session.Tracker { return in.tracker }

// Handle runs one turn. The error is reserved for turns that never
// started (missing session id, cancelled while waiting for the session).
// If ctx is cancelled after the turn started, the reply is still returned
// but the context mutation is dropped.
func (in *Interpreter) Handle(ctx context.Context, req Request) (types.Reply, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return types.Reply{}, errors.New("interpreter: empty session id")
	}
	timer := logging.StartTimer(logging.CategorySession, "Handle")
	defer timer.Stop()

	turn, err := in.tracker.Begin(ctx, req.SessionID)
	if err != nil {
		return types.Reply{}, fmt.Errorf("session %s busy: %w", req.SessionID, err)
	}
	sctx := turn.Context()

	intent, reply, mutation := in.run(ctx, req, sctx)

	if ctx.Err() != nil {
		logging.Session("session %s: turn cancelled, context left unchanged", req.SessionID)
		turn.Release()
		return reply, nil
	}
	turn.Commit(mutation)

	if rec := in.tracker.Recorder(); rec != nil {
		err := rec.RecordTurn(context.WithoutCancel(ctx), session.TurnRecord{
			SessionID: req.SessionID,
			Number:    sctx.Turns + 1,
			Utterance: req.Text,
			Intent:    intent,
			Reply:     reply,
		})
		if err != nil {
			logging.Get(logging.CategorySession).Warn("session %s: failed to record turn: %v", req.SessionID, err)
		}
	}
	return reply, nil
}

func (in *Interpreter) run(ctx context.Context, req Request, sctx *session.Context) (types.Intent, types.Reply, session.Mutation) {
	text := strings.TrimSpace(req.Text)

	if pending := sctx.PendingConfirmation; pending != nil {
		// The flag only confirms the held plan when nothing else was asked.
		// Any other request is planned on its own and drops the held plan.
		switch {
		case isAffirmative(text) || (req.Confirm && text == ""):
			intent := types.Intent{Kind: pending.Intent, Raw: text}
			reply, m := in.execute(ctx, intent, pending, true, sctx)
			return intent, reply, m
		case isNegative(text):
			logging.Session("session %s: %s cancelled", sctx.ID, pending.Op)
			return types.Intent{Kind: pending.Intent, Raw: text},
				types.Reply{Success: true, Response: "Okay, cancelled. Nothing was changed.", Type: types.ReplyResult},
				func(cx *session.Context) { cx.PendingConfirmation = nil }
		}
	} else if req.Confirm && (text == "" || isAffirmative(text)) {
		return types.Intent{Kind: types.IntentUnknown, Raw: text},
			types.Reply{Success: false, Response: "There is nothing waiting for confirmation.", Type: types.ReplyError},
			nil
	}

	intent := in.extractor.Extract(ctx, types.Utterance{Text: req.Text, SessionID: sctx.ID, ReceivedAt: in.now()}, sctx)
	if pending := sctx.PendingClarification; pending != nil {
		intent = continueClarification(pending, intent, text)
	}
	logging.SessionDebug("session %s: intent %s slots=%v", sctx.ID, intent.Kind, intent.SlotNames())

	if intent.Kind == types.IntentUnknown {
		reply, m := in.synth.Respond(ctx, articulation.Outcome{Intent: intent}, sctx)
		return intent, reply, m
	}

	outcome, err := in.planner.Plan(ctx, intent, sctx)
	if err != nil {
		reply, m := in.synth.Respond(ctx, articulation.Outcome{Intent: intent, Err: err}, sctx)
		return intent, reply, m
	}

	switch o := outcome.(type) {
	case *types.Clarification:
		reply, m := in.synth.Respond(ctx, articulation.Outcome{Intent: intent, Clarification: o}, sctx)
		return intent, reply, m
	case *types.PlanningError:
		reply, m := in.synth.Respond(ctx, articulation.Outcome{Intent: intent, PlanningError: o}, sctx)
		return intent, reply, m
	case *types.OperationPlan:
		reply, m := in.execute(ctx, intent, o, req.Confirm, sctx)
		return intent, reply, m
	}
	reply, m := in.synth.Respond(ctx, articulation.Outcome{Intent: intent, Err: fmt.Errorf("unexpected plan outcome %T", outcome)}, sctx)
	return intent, reply, m
}

func (in *Interpreter) execute(ctx context.Context, intent types.Intent, plan *types.OperationPlan, confirmed bool, sctx *session.Context) (types.Reply, session.Mutation) {
	res, err := in.executor.Execute(ctx, plan, confirmed)
	if err != nil {
		return in.synth.Respond(ctx, articulation.Outcome{Intent: intent, Err: err}, sctx)
	}
	return in.synth.Respond(ctx, articulation.Outcome{Intent: intent, Result: res}, sctx)
}

// continueClarification merges the answer to an open question into the
// partial intent. A different known intent abandons the question.
func continueClarification(pending *types.Clarification, got types.Intent, text string) types.Intent {
	if got.Kind != types.IntentUnknown && got.Kind != pending.Partial.Kind {
		logging.SessionDebug("clarification for %s abandoned by %s", pending.Partial.Kind, got.Kind)
		return got
	}

	merged := pending.Partial.Clone()
	if merged.Slots == nil {
		merged.Slots = make(map[types.SlotName]string)
	}
	if got.Kind == merged.Kind {
		for k, v := range got.Slots {
			merged.Slots[k] = v
		}
	}
	merged.Raw = text

	if choice, ok := chooseCandidate(pending.Candidates, text); ok {
		merged.Slots[pending.Slot] = choice
	} else if merged.Slot(pending.Slot) == "" && text != "" {
		merged.Slots[pending.Slot] = text
	}
	return merged
}

// chooseCandidate maps "2", "the second one" or an exact candidate name
// onto that candidate's id reference.
func chooseCandidate(cands []types.Candidate, answer string) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	if i, ok := resolve.ChoiceIndex(answer, len(cands)); ok {
		return fmt.Sprintf("#%d", cands[i].ID), true
	}
	for _, c := range cands {
		if strings.EqualFold(strings.TrimSpace(answer), c.Name) {
			return fmt.Sprintf("#%d", c.ID), true
		}
	}
	return "", false
}

var (
	affirmatives = map[string]bool{
		"yes": true, "y": true, "yep": true, "yeah": true, "confirm": true, "confirmed": true,
		"do it": true, "go ahead": true, "proceed": true, "ok": true, "okay": true, "sure": true,
		"yes please": true, "yes, do it": true,
	}
	negatives = map[string]bool{
		"no": true, "n": true, "nope": true, "cancel": true, "stop": true, "abort": true,
		"never mind": true, "nevermind": true, "don't": true, "no thanks": true,
	}
)

func normalizeAnswer(s string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(s)), ".!")
}

func isAffirmative(s string) bool { return affirmatives[normalizeAnswer(s)] }

func isNegative(s string) bool { return negatives[normalizeAnswer(s)] }
