package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tasknerd/internal/types"
)

var (
	idCompareRe = regexp.MustCompile(`^(>=|<=|>|<|greater than or equal to|less than or equal to|greater than|more than|above|over|after|less than|below|under|before|at least|at most)\s*#?(\d+)$`)
	idRangeRe   = regexp.MustCompile(`^(?:from\s+)?#?(\d+)\s*(?:-|to|through|\.\.)\s*#?(\d+)$`)
	idBetweenRe = regexp.MustCompile(`^between\s+#?(\d+)\s+and\s+#?(\d+)$`)
	idListRe    = regexp.MustCompile(`^#?\d+(?:\s*(?:,|and|&)\s*#?\d+)*$`)
	idSplitRe   = regexp.MustCompile(`\s*(?:,|and|&)\s*`)
)

// applyIDFilter narrows f by an id expression: ">5", "<5", ">=5", "3-8",
// "between 3 and 8", "1,2,3" or a single id. Bounds are inclusive.
func applyIDFilter(f *types.TaskFilter, expr string) error {
	s := strings.ToLower(strings.TrimSpace(expr))
	s = strings.TrimPrefix(s, "ids ")
	s = strings.TrimPrefix(s, "id ")
	s = strings.TrimPrefix(s, "tasks ")
	s = strings.TrimSpace(s)

	if m := idCompareRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", m[2])
		}
		switch m[1] {
		case ">", "greater than", "more than", "above", "over", "after":
			n++
			f.MinID = &n
		case ">=", "greater than or equal to", "at least":
			f.MinID = &n
		case "<", "less than", "below", "under", "before":
			n--
			f.MaxID = &n
		default:
			f.MaxID = &n
		}
		return nil
	}

	m := idRangeRe.FindStringSubmatch(s)
	if m == nil {
		m = idBetweenRe.FindStringSubmatch(s)
	}
	if m != nil {
		lo, err1 := strconv.ParseInt(m[1], 10, 64)
		hi, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid id range %q", expr)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		f.MinID, f.MaxID = &lo, &hi
		return nil
	}

	if idListRe.MatchString(s) {
		ids, err := parseIDList(s)
		if err != nil {
			return err
		}
		f.IDs = ids
		return nil
	}

	return fmt.Errorf("cannot read task ids from %q; use '>5', '<5', '3-8' or '1,2,3'", expr)
}

// parseIDList reads "1, 2 and #3" into ids, dropping duplicates.
func parseIDList(s string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, part := range idSplitRe.Split(strings.TrimSpace(s), -1) {
		part = strings.TrimPrefix(strings.TrimSpace(part), "#")
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		if !seen[n] {
			seen[n] = true
			ids = append(ids, n)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids in %q", s)
	}
	return ids, nil
}

// isIDList reports whether s names two or more ids ("4, 7", "#1 and #2").
func isIDList(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if !idListRe.MatchString(s) {
		return false
	}
	ids, err := parseIDList(s)
	return err == nil && len(ids) > 1
}
