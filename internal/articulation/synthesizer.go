// Package articulation turns the outcome of a turn into the user-facing
// Reply and the context mutation that the turn commits.
package articulation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tasknerd/internal/logging"
	"tasknerd/internal/session"
	"tasknerd/internal/store"
	"tasknerd/internal/types"
)

// Outcome is everything the pipeline knows at the end of a turn. Exactly
// one of Clarification, PlanningError, Result or Err is set, unless the
// intent is Unknown.
type Outcome struct {
	Intent        types.Intent
	Clarification *types.Clarification
	PlanningError *types.PlanningError
	Result        *types.ExecutionResult
	Err           error
}

// Options configures a Synthesizer.
type Options struct {
	// Client enables model rephrasing when Rephrase is set.
	Client   types.LLMClient
	Rephrase bool
	Timeout  time.Duration
	Now      func() time.Time
}

// Synthesizer implements the Response Synthesizer.
type Synthesizer struct {
	rephraser *rephraser
	rephrase  atomic.Bool
	now       func() time.Time
}

// New creates a Synthesizer.
func New(opts Options) *Synthesizer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Synthesizer{now: opts.Now}
	if opts.Client != nil {
		s.rephraser = &rephraser{client: opts.Client, timeout: opts.Timeout}
	}
	s.rephrase.Store(opts.Rephrase)
	return s
}

// SetRephrase toggles model rephrasing (config reload).
func (s *Synthesizer) SetRephrase(on bool) { s.rephrase.Store(on) }

// Stats returns the rephrasing counters.
func (s *Synthesizer) Stats() RephraseStats {
	if s.rephraser == nil {
		return RephraseStats{}
	}
	return s.rephraser.Stats()
}

// Respond builds the reply for out. The returned mutation is nil when the
// context must stay untouched.
func (s *Synthesizer) Respond(ctx context.Context, out Outcome, sctx *session.Context) (types.Reply, session.Mutation) {
	timer := logging.StartTimer(logging.CategoryArticulation, "Respond")
	defer timer.Stop()

	switch {
	case out.Clarification != nil:
		c := out.Clarification
		return types.Reply{Success: false, Response: c.Question, Data: c, Type: types.ReplyClarification},
			func(cx *session.Context) {
				cx.PendingClarification = c
				cx.PendingConfirmation = nil
			}

	case out.PlanningError != nil:
		return types.Reply{
			Success:  false,
			Response: fmt.Sprintf("I can't do that: %s.", out.PlanningError.Reason),
			Type:     types.ReplyError,
		}, clearPending

	case out.Err != nil:
		return s.failure(out.Err)

	case out.Result != nil:
		return s.success(ctx, out.Result)
	}

	logging.ArticulationDebug("unknown intent for %q", out.Intent.Raw)
	return types.Reply{Success: false, Response: UnknownResponse, Type: types.ReplyUnknown}, nil
}

func clearPending(cx *session.Context) {
	cx.PendingClarification = nil
	cx.PendingConfirmation = nil
}

func (s *Synthesizer) failure(err error) (types.Reply, session.Mutation) {
	var cr *types.ConfirmationRequiredError
	if errors.As(err, &cr) {
		plan := cr.Plan
		return types.Reply{
				Success:  false,
				Response: confirmationSentence(plan),
				Data:     plan,
				Type:     types.ReplyConfirmationRequired,
			}, func(cx *session.Context) {
				cx.PendingConfirmation = plan
				cx.PendingClarification = nil
			}
	}

	var ee *types.ExecutionError
	if errors.As(err, &ee) {
		// A failed store operation leaves the context as it was.
		return types.Reply{Success: false, Response: executionSentence(ee), Type: types.ReplyError}, nil
	}

	logging.Get(logging.CategoryArticulation).Warn("unclassified turn error: %v", err)
	return types.Reply{Success: false, Response: "Something went wrong while handling that request: " + err.Error(), Type: types.ReplyError}, clearPending
}

// executionSentence names the violated constraint when there is one.
func executionSentence(ee *types.ExecutionError) string {
	switch {
	case errors.Is(ee, store.ErrNotFound):
		return "That item no longer exists, so nothing was changed."
	case ee.Constraint == store.ConstraintUnique:
		var ce *store.ConstraintError
		if errors.As(ee, &ce) && ce.Detail != "" {
			return fmt.Sprintf("That already exists (%s must be unique), so nothing was changed.", ce.Detail)
		}
		return "That already exists, so nothing was changed."
	case ee.Constraint != "":
		return fmt.Sprintf("The change was rejected by the database (%s constraint), so nothing was changed.", ee.Constraint)
	}
	return fmt.Sprintf("The operation failed and nothing was changed: %v", ee.Err)
}

func (s *Synthesizer) success(ctx context.Context, res *types.ExecutionResult) (types.Reply, session.Mutation) {
	text := resultSentence(res)
	if s.rephrase.Load() {
		text = s.rephraser.rephrase(ctx, text, anchorsFor(res))
	}

	reply := types.Reply{Success: true, Response: text, Data: payload(res), Type: types.ReplyResult}
	return reply, s.successMutation(res)
}

func refs(tasks []types.Task) []types.TaskRef {
	out := make([]types.TaskRef, len(tasks))
	for i, t := range tasks {
		out[i] = types.TaskRef{ID: t.ID, Title: t.Title}
	}
	return out
}

func without(list []types.TaskRef, ids ...int64) []types.TaskRef {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var out []types.TaskRef
	for _, r := range list {
		if !drop[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Synthesizer) successMutation(res *types.ExecutionResult) session.Mutation {
	op := res.Plan.Op
	at := s.now()
	tasks := refs(res.Tasks)
	drafts := append([]types.TaskDraft(nil), res.Drafts...)
	var deleted []int64
	for _, t := range res.Tasks {
		deleted = append(deleted, t.ID)
	}
	allTasks := res.Plan.Filter != nil && res.Plan.Filter.All

	return func(cx *session.Context) {
		clearPending(cx)
		cx.LastOperation = &types.OperationSummary{Op: op, At: at, Affected: res.Count}

		switch op {
		case types.OpCreateTask, types.OpListTasks, types.OpUpdateTask,
			types.OpAddTag, types.OpRemoveTag:
			cx.LastResults = tasks
		case types.OpDeleteTask:
			cx.LastResults = without(cx.LastResults, deleted...)
		case types.OpBulkDeleteTasks:
			if allTasks {
				cx.LastResults = nil
			} else {
				cx.LastResults = without(cx.LastResults, res.Plan.Filter.IDs...)
			}
		case types.OpGenerateTasks:
			cx.PendingGenerated = drafts
		case types.OpImportTasks:
			cx.PendingGenerated = nil
			cx.LastResults = tasks
		}
	}
}
