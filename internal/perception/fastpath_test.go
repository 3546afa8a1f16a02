package perception

import (
	"testing"

	"tasknerd/internal/types"
)

func TestFastPath(t *testing.T) {
	tests := []struct {
		in    string
		kind  types.IntentKind
		slots map[types.SlotName]string
	}{
		{"show tables", types.IntentShowSchema, nil},
		{"Show all tables.", types.IntentShowSchema, nil},
		{"delete all projects", types.IntentDeleteProject, map[types.SlotName]string{types.SlotScope: "all"}},
		{"delete all tasks", types.IntentDeleteTask, map[types.SlotName]string{types.SlotScope: "all"}},
		{"delete these tasks", types.IntentDeleteTask, map[types.SlotName]string{types.SlotScope: "these"}},
		{"delete project 4, 7", types.IntentDeleteProject, map[types.SlotName]string{types.SlotProject: "4, 7"}},
		{"list tasks", types.IntentListTasks, nil},
		{"show me all projects", types.IntentListProjects, nil},
		{"show users", types.IntentListUsers, nil},
		{"add these tasks", types.IntentImportGeneratedTasks, nil},
		{"save all", types.IntentImportGeneratedTasks, nil},
		{"Import these tasks to project Garden Makeover", types.IntentImportGeneratedTasks,
			map[types.SlotName]string{types.SlotProject: "Garden Makeover"}},
		{"how to plant a vegetable garden", types.IntentGenerateTasks,
			map[types.SlotName]string{types.SlotGoal: "how to plant a vegetable garden"}},
		{"Create a task with title 'Ship v2' and description 'Tag and push'", types.IntentCreateTask,
			map[types.SlotName]string{types.SlotTitle: "Ship v2", types.SlotDescription: "Tag and push"}},
		{"create task titled 'Water plants' and description ''", types.IntentCreateTask,
			map[types.SlotName]string{types.SlotTitle: "Water plants"}},
	}
	for _, tt := range tests {
		got, ok := fastPath(tt.in)
		if !ok {
			t.Errorf("fastPath(%q) did not match", tt.in)
			continue
		}
		if got.Kind != tt.kind {
			t.Errorf("fastPath(%q).Kind = %s, want %s", tt.in, got.Kind, tt.kind)
		}
		if len(got.Slots) != len(tt.slots) {
			t.Errorf("fastPath(%q).Slots = %v, want %v", tt.in, got.Slots, tt.slots)
			continue
		}
		for k, v := range tt.slots {
			if got.Slots[k] != v {
				t.Errorf("fastPath(%q).Slots[%s] = %q, want %q", tt.in, k, got.Slots[k], v)
			}
		}
		if got.Raw != tt.in {
			t.Errorf("fastPath(%q).Raw = %q", tt.in, got.Raw)
		}
	}
}

func TestFastPath_NoMatch(t *testing.T) {
	for _, in := range []string{
		"create task 'Review code' with high priority",
		"mark the first one completed",
		"show tasks due this week",
		"add all high priority tasks to project X and more",
		"how to",
	} {
		if got, ok := fastPath(in); ok {
			t.Errorf("fastPath(%q) = %s, want no match", in, got.Kind)
		}
	}
}
