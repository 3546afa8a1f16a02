package planner

import (
	"fmt"
	"strings"

	"tasknerd/internal/types"
)

// maxListedCandidates bounds the candidates spelled out in a question.
const maxListedCandidates = 5

func kindNoun(k types.EntityKind) string {
	switch k {
	case types.EntityDate:
		return "date"
	case types.EntityUser:
		return "user"
	case types.EntityNone:
		return "value"
	}
	return string(k)
}

func missingQuestion(intent types.IntentKind, sp types.SlotSpec) string {
	switch sp.Name {
	case types.SlotTitle:
		return "What should the task be called?"
	case types.SlotTask:
		switch intent {
		case types.IntentDeleteTask:
			return "Which task should I delete?"
		case types.IntentAddTag, types.IntentRemoveTag:
			return "Which task do you mean?"
		}
		return "Which task should I update?"
	case types.SlotName_:
		return "What should the project be called?"
	case types.SlotProject:
		return "Which project do you mean?"
	case types.SlotTag:
		return "Which tag?"
	case types.SlotUsername:
		return "What username should the new user have?"
	case types.SlotEmail:
		return "What is the new user's email address?"
	case types.SlotGoal:
		return "What would you like me to plan?"
	case types.SlotScope:
		return "Which tasks do you mean? Say 'all', 'these' for the tasks just shown, or give ids such as '>5', '3-8' or '1,2,3'."
	}
	return fmt.Sprintf("What %s do you mean?", strings.ReplaceAll(string(sp.Name), "_", " "))
}

func notFoundQuestion(sp types.SlotSpec, e types.ResolvedEntity) string {
	switch sp.Kind {
	case types.EntityPriority:
		return fmt.Sprintf("I don't know the priority '%s'. Should it be low, medium or high?", e.Raw)
	case types.EntityStatus:
		return fmt.Sprintf("I don't know the status '%s'. Should it be pending, in progress or completed?", e.Raw)
	case types.EntityDate:
		return fmt.Sprintf("I couldn't understand the date '%s'. Try something like 'tomorrow', 'next friday' or '2026-05-01'.", e.Raw)
	case types.EntityTask:
		return fmt.Sprintf("I couldn't find a task matching '%s'. Which task do you mean?", e.Raw)
	}
	return fmt.Sprintf("I couldn't find a %s matching '%s'. Which %s do you mean?", kindNoun(sp.Kind), e.Raw, kindNoun(sp.Kind))
}

// ambiguousQuestion numbers the candidates so "2" or "the second one"
// answers it.
func ambiguousQuestion(sp types.SlotSpec, e types.ResolvedEntity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "'%s' matches several %ss:", e.Raw, kindNoun(sp.Kind))
	for i, c := range e.Candidates {
		if i == maxListedCandidates {
			fmt.Fprintf(&sb, " and %d more", len(e.Candidates)-maxListedCandidates)
			break
		}
		fmt.Fprintf(&sb, " %d) %s (#%d)", i+1, c.Name, c.ID)
	}
	sb.WriteString(". Which one do you mean?")
	return sb.String()
}
