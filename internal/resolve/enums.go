package resolve

import (
	"strings"

	"tasknerd/internal/types"
)

// prioritySynonyms maps normalized free text onto a priority.
var prioritySynonyms = map[string]types.Priority{
	"low":        types.PriorityLow,
	"lowest":     types.PriorityLow,
	"minor":      types.PriorityLow,
	"trivial":    types.PriorityLow,
	"not urgent": types.PriorityLow,
	"whenever":   types.PriorityLow,
	"medium":     types.PriorityMedium,
	"med":        types.PriorityMedium,
	"mid":        types.PriorityMedium,
	"normal":     types.PriorityMedium,
	"moderate":   types.PriorityMedium,
	"average":    types.PriorityMedium,
	"standard":   types.PriorityMedium,
	"high":       types.PriorityHigh,
	"highest":    types.PriorityHigh,
	"urgent":     types.PriorityHigh,
	"important":  types.PriorityHigh,
	"critical":   types.PriorityHigh,
	"top":        types.PriorityHigh,
	"asap":       types.PriorityHigh,
}

// statusSynonyms maps normalized free text onto a status.
var statusSynonyms = map[string]types.TaskStatus{
	"pending":     types.StatusPending,
	"todo":        types.StatusPending,
	"to do":       types.StatusPending,
	"open":        types.StatusPending,
	"new":         types.StatusPending,
	"not started": types.StatusPending,
	"waiting":     types.StatusPending,
	"not done":    types.StatusPending,
	"incomplete":  types.StatusPending,
	"undone":      types.StatusPending,
	"reopened":    types.StatusPending,
	"in progress": types.StatusInProgress,
	"started":     types.StatusInProgress,
	"doing":       types.StatusInProgress,
	"ongoing":     types.StatusInProgress,
	"working":     types.StatusInProgress,
	"active":      types.StatusInProgress,
	"wip":         types.StatusInProgress,
	"underway":    types.StatusInProgress,
	"completed":   types.StatusCompleted,
	"complete":    types.StatusCompleted,
	"done":        types.StatusCompleted,
	"finished":    types.StatusCompleted,
	"finish":      types.StatusCompleted,
	"closed":      types.StatusCompleted,
	"resolved":    types.StatusCompleted,
}

// normalizeEnum lowercases, turns '_'/'-' into spaces and drops a trailing
// "priority"/"status" word and a leading "as"/"to".
func normalizeEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	for _, prefix := range []string{"as ", "to ", "marked ", "mark "} {
		s = strings.TrimPrefix(s, prefix)
	}
	for _, suffix := range []string{" priority", " status"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}

func resolvePriority(raw string) types.ResolvedEntity {
	e := types.ResolvedEntity{Kind: types.EntityPriority, Raw: raw, Status: types.NotFound}
	if p, ok := prioritySynonyms[normalizeEnum(raw)]; ok {
		e.Status = types.Resolved
		e.Literal = string(p)
		e.Name = string(p)
	}
	return e
}

func resolveStatus(raw string) types.ResolvedEntity {
	e := types.ResolvedEntity{Kind: types.EntityStatus, Raw: raw, Status: types.NotFound}
	if st, ok := statusSynonyms[normalizeEnum(raw)]; ok {
		e.Status = types.Resolved
		e.Literal = string(st)
		e.Name = string(st)
	}
	return e
}
