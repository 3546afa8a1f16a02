// Package session tracks per-session conversational context and
// serializes the turns of each session.
package session

import (
	"time"

	"tasknerd/internal/types"
)

// Context is the conversational memory of one session.
type Context struct {
	ID string `json:"id"`

	// LastResults are the tasks last shown, in display order.
	LastResults []types.TaskRef `json:"last_results,omitempty"`

	// PendingGenerated holds drafts from the last GenerateTasks turn.
	// Overwritten by each generation, cleared by an import.
	PendingGenerated []types.TaskDraft `json:"pending_generated,omitempty"`

	// PendingClarification is the open question gating the next turn.
	PendingClarification *types.Clarification `json:"pending_clarification,omitempty"`

	// PendingConfirmation is a bulk plan waiting for the confirm signal.
	PendingConfirmation *types.OperationPlan `json:"pending_confirmation,omitempty"`

	LastOperation *types.OperationSummary `json:"last_operation,omitempty"`

	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Mutation changes a context at the end of a turn.
type Mutation func(*Context)

// Compose chains mutations; nil entries are skipped.
func Compose(ms ...Mutation) Mutation {
	return func(c *Context) {
		for _, m := range ms {
			if m != nil {
				m(c)
			}
		}
	}
}

// Clone returns a deep copy so a turn can read its snapshot without
// holding the tracker lock.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastResults != nil {
		out.LastResults = append([]types.TaskRef(nil), c.LastResults...)
	}
	if c.PendingGenerated != nil {
		out.PendingGenerated = append([]types.TaskDraft(nil), c.PendingGenerated...)
	}
	if c.PendingClarification != nil {
		cl := *c.PendingClarification
		cl.Partial = cl.Partial.Clone()
		cl.Candidates = append([]types.Candidate(nil), cl.Candidates...)
		out.PendingClarification = &cl
	}
	if c.PendingConfirmation != nil {
		p := *c.PendingConfirmation
		if p.Filter != nil {
			f := *p.Filter
			f.IDs = append([]int64(nil), f.IDs...)
			p.Filter = &f
		}
		p.Params.ProjectIDs = append([]int64(nil), p.Params.ProjectIDs...)
		p.Params.Drafts = append([]types.TaskDraft(nil), p.Params.Drafts...)
		out.PendingConfirmation = &p
	}
	if c.LastOperation != nil {
		op := *c.LastOperation
		out.LastOperation = &op
	}
	return &out
}

// LastResultIDs returns the ids of LastResults in order.
func (c *Context) LastResultIDs() []int64 {
	if c == nil {
		return nil
	}
	ids := make([]int64, len(c.LastResults))
	for i, r := range c.LastResults {
		ids[i] = r.ID
	}
	return ids
}
