package articulation

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

const rephraseSystemPrompt = `You rewrite status messages from a task manager so they read naturally.
Keep every task title, project name, tag, username, id and number exactly as written.
Do not add information, advice or questions. Do not remove list items.
Return only the rewritten message as plain text.`

// RephraseStats tracks how rephrased replies fared.
type RephraseStats struct {
	Attempted int
	Accepted  int
	Rejected  int // anchor missing or output unusable
	Failed    int // model error
}

// rephraser asks the model for a friendlier wording and keeps it only when
// every anchor of the template survived.
type rephraser struct {
	client  types.LLMClient
	timeout time.Duration

	mu    sync.Mutex
	stats RephraseStats
}

func (r *rephraser) record(f func(*RephraseStats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

func (r *rephraser) Stats() RephraseStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// rephrase returns the accepted rewording of template, or template.
func (r *rephraser) rephrase(ctx context.Context, template string, anchors []string) string {
	if r == nil || r.client == nil {
		return template
	}
	r.record(func(s *RephraseStats) { s.Attempted++ })

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.client.CompleteWithSystem(ctx, rephraseSystemPrompt, template)
	if err != nil {
		r.record(func(s *RephraseStats) { s.Failed++ })
		logging.ArticulationDebug("rephrase failed, using template: %v", err)
		return template
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), "`"))
	if ok, missing := keepsAnchors(out, anchors); !ok || out == "" || len(out) > 4*len(template)+200 {
		r.record(func(s *RephraseStats) { s.Rejected++ })
		logging.ArticulationDebug("rephrase rejected (missing %q), using template", missing)
		return template
	}
	r.record(func(s *RephraseStats) { s.Accepted++ })
	return out
}

// keepsAnchors reports whether text contains every anchor, ignoring case.
func keepsAnchors(text string, anchors []string) (bool, string) {
	lower := strings.ToLower(text)
	for _, a := range anchors {
		if a == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(a)) {
			return false, a
		}
	}
	return true, ""
}

// anchorsFor lists the facts a rewording must keep: names, ids and counts.
func anchorsFor(res *types.ExecutionResult) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	for _, t := range res.Tasks {
		add(t.Title)
	}
	for _, p := range res.Projects {
		add(p.Name)
	}
	for _, u := range res.Users {
		add(u.Username)
	}
	for _, d := range res.Drafts {
		add(d.Title)
	}
	if res.Tag != nil {
		add(res.Tag.Name)
	}
	for _, tbl := range res.Schema {
		add(tbl.Name)
	}
	if res.Count > 1 && len(res.Schema) == 0 {
		add(strconv.Itoa(res.Count))
	}
	return out
}
