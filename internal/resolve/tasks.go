package resolve

import (
	"context"
	"strconv"
	"strings"

	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

var ordinalWords = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"fifth": 5, "5th": 5,
	"sixth": 6, "6th": 6,
	"seventh": 7, "7th": 7,
	"eighth": 8, "8th": 8,
	"ninth": 9, "9th": 9,
	"tenth": 10, "10th": 10,
}

var pronounRefs = map[string]bool{
	"it": true, "that": true, "this": true, "that one": true, "this one": true,
	"that task": true, "this task": true, "the task": true, "same task": true,
}

// position is a parsed positional reference.
type position struct {
	index   int  // 1-based; 0 with last=true
	last    bool // "last", "the last one"
	numeric bool // written as digits ("2", "task 2")
}

// parsePosition recognizes "first", "the second one", "last", "task 2",
// "number 2" and a bare "2".
func parsePosition(q string) (position, bool) {
	s := strings.TrimPrefix(q, "the ")
	s = strings.TrimSuffix(s, " one")
	s = strings.TrimSuffix(s, " task")
	s = strings.TrimSuffix(s, " item")
	for _, prefix := range []string{"task number ", "task no. ", "task #", "task ", "number ", "no. ", "item "} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSpace(s)

	if s == "last" || s == "final" {
		return position{last: true}, true
	}
	if n, ok := ordinalWords[s]; ok {
		return position{index: n}, true
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return position{index: n, numeric: true}, true
	}
	return position{}, false
}

func (r *Resolver) resolveTask(ctx context.Context, raw string, sctx *session.Context) (types.ResolvedEntity, error) {
	e := types.ResolvedEntity{Kind: types.EntityTask, Raw: raw, Status: types.NotFound}
	q := normalizeName(raw)
	if q == "" {
		return e, nil
	}

	var last []types.TaskRef
	if sctx != nil {
		last = sctx.LastResults
	}

	if id, ok := parseIDRef(q); ok {
		return r.byID(ctx, types.EntityTask, raw, id)
	}

	if pronounRefs[q] {
		switch len(last) {
		case 0:
			return e, nil
		case 1:
			e.Status, e.ID, e.Name = types.Resolved, last[0].ID, last[0].Title
			return e, nil
		default:
			e.Status = types.Ambiguous
			for _, ref := range last {
				e.Candidates = append(e.Candidates, types.Candidate{ID: ref.ID, Name: ref.Title})
			}
			return e, nil
		}
	}

	if pos, ok := parsePosition(q); ok {
		if len(last) > 0 {
			idx := pos.index
			if pos.last {
				idx = len(last)
			}
			if idx < 1 || idx > len(last) {
				return e, nil
			}
			ref := last[idx-1]
			e.Status, e.ID, e.Name = types.Resolved, ref.ID, ref.Title
			return e, nil
		}
		if pos.numeric {
			return r.byID(ctx, types.EntityTask, raw, int64(pos.index))
		}
		return e, nil
	}

	items, err := r.load(ctx, types.EntityTask)
	if err != nil {
		return e, err
	}
	q = strings.TrimPrefix(q, "task ")
	return r.match(types.EntityTask, raw, q, items), nil
}

// ChoiceIndex reads an answer to a numbered question ("2", "2)", "the
// second one", "last") as a 0-based index into n options.
func ChoiceIndex(answer string, n int) (int, bool) {
	q := normalizeName(strings.TrimRight(strings.TrimSpace(answer), ".)!"))
	q = strings.TrimPrefix(q, "option ")
	pos, ok := parsePosition(q)
	if !ok || n <= 0 {
		return 0, false
	}
	idx := pos.index
	if pos.last {
		idx = n
	}
	if idx < 1 || idx > n {
		return 0, false
	}
	return idx - 1, true
}
