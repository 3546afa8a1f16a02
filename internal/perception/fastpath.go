package perception

import (
	"regexp"
	"strings"

	"tasknerd/internal/types"
)

var (
	importRe = regexp.MustCompile(`^(?:add|import|save|create) (?:these|those|all|all of these|all of them|them)(?: tasks)?(?: to tasks)?(?: (?:to|into|in) (?:the )?project (.+))?$`)
	deleteProjectIDsRe = regexp.MustCompile(`^delete projects? (\d+(?:\s*,\s*\d+)*)$`)
	listRe             = regexp.MustCompile(`^(?:list|show|show me|display|get)(?: all| my)? (tasks|projects|users)$`)
	// Matched against the original text so the title keeps its casing.
	createQuotedRe = regexp.MustCompile(`(?i)^create (?:a )?(?:new )?task (?:with )?title[d]? '([^']+)'(?: and description '([^']*)')?[.!]?$`)

	generatePrefixes = []string{
		"how to ", "how do i ", "how can i ", "break down ", "create a plan for ", "make a plan for ",
		"plan out ", "walk me through ", "guide me through ", "show me how to ", "what are the steps to ",
	}
)

// fastPath maps exact command phrases to intents without a model call.
func fastPath(text string) (types.Intent, bool) {
	q := strings.ToLower(strings.TrimSpace(text))
	q = strings.TrimRight(q, ".!?")
	q = strings.Join(strings.Fields(q), " ")

	intent := func(kind types.IntentKind, slots map[types.SlotName]string) (types.Intent, bool) {
		return types.Intent{Kind: kind, Slots: slots, Raw: text}, true
	}

	switch q {
	case "show tables", "show all tables", "show schema", "describe tables", "describe schema":
		return intent(types.IntentShowSchema, nil)
	case "delete all projects", "delete all project", "remove all projects":
		return intent(types.IntentDeleteProject, map[types.SlotName]string{types.SlotScope: types.ScopeAll})
	case "delete all tasks", "remove all tasks":
		return intent(types.IntentDeleteTask, map[types.SlotName]string{types.SlotScope: types.ScopeAll})
	case "delete these tasks", "delete these", "remove these tasks":
		return intent(types.IntentDeleteTask, map[types.SlotName]string{types.SlotScope: types.ScopeThese})
	}

	if m := createQuotedRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		slots := map[types.SlotName]string{types.SlotTitle: strings.TrimSpace(m[1])}
		if d := strings.TrimSpace(m[2]); d != "" {
			slots[types.SlotDescription] = d
		}
		return intent(types.IntentCreateTask, slots)
	}

	if m := listRe.FindStringSubmatch(q); m != nil {
		switch m[1] {
		case "tasks":
			return intent(types.IntentListTasks, nil)
		case "projects":
			return intent(types.IntentListProjects, nil)
		default:
			return intent(types.IntentListUsers, nil)
		}
	}

	if m := deleteProjectIDsRe.FindStringSubmatch(q); m != nil {
		return intent(types.IntentDeleteProject, map[types.SlotName]string{types.SlotProject: m[1]})
	}

	if m := importRe.FindStringSubmatch(q); m != nil {
		var slots map[types.SlotName]string
		if m[1] != "" {
			// Keep the user's casing for the project name when possible.
			name := m[1]
			if idx := strings.LastIndex(strings.ToLower(text), m[1]); idx >= 0 && idx+len(m[1]) <= len(text) {
				name = text[idx : idx+len(m[1])]
			}
			slots = map[types.SlotName]string{types.SlotProject: strings.Trim(name, `'"`)}
		}
		return intent(types.IntentImportGeneratedTasks, slots)
	}

	for _, p := range generatePrefixes {
		if strings.HasPrefix(q, p) && len(q) > len(p) {
			return intent(types.IntentGenerateTasks, map[types.SlotName]string{types.SlotGoal: strings.TrimSpace(text)})
		}
	}

	return types.Intent{}, false
}
