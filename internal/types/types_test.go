package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseIntentKind(t *testing.T) {
	tests := []struct {
		label string
		want  IntentKind
		ok    bool
	}{
		{"CreateTask", IntentCreateTask, true},
		{"create_task", IntentCreateTask, true},
		{"  Bulk-Update ", IntentBulkUpdate, true},
		{"importgeneratedtasks", IntentImportGeneratedTasks, true},
		{"unknown", IntentUnknown, true},
		{"search_tasks", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseIntentKind(tt.label)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseIntentKind(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSchemas_EveryIntentDeclared(t *testing.T) {
	all := []IntentKind{
		IntentCreateTask, IntentListTasks, IntentUpdateTask, IntentDeleteTask, IntentBulkUpdate,
		IntentCreateProject, IntentListProjects, IntentDeleteProject, IntentAddTag, IntentRemoveTag,
		IntentCreateUser, IntentListUsers, IntentGenerateTasks, IntentImportGeneratedTasks, IntentShowSchema,
	}
	for _, k := range all {
		if _, ok := SchemaFor(k); !ok {
			t.Errorf("no schema for %s", k)
		}
	}
	if _, ok := SchemaFor(IntentUnknown); ok {
		t.Error("Unknown must not have a schema")
	}

	s, _ := SchemaFor(IntentCreateTask)
	if s.Slots[0].Name != SlotTitle || !s.Slots[0].Required {
		t.Errorf("CreateTask first slot = %+v, want required title", s.Slots[0])
	}
	if !s.Has(SlotAssignee) || s.Has(SlotTask) {
		t.Error("CreateTask slot set is wrong")
	}
}

func TestSchemas_ReferenceSlotsResolve(t *testing.T) {
	want := map[SlotName]EntityKind{
		SlotProject:  EntityProject,
		SlotAssignee: EntityUser,
		SlotTag:      EntityTag,
		SlotTask:     EntityTask,
		SlotDueDate:  EntityDate,
	}
	for _, s := range Schemas() {
		for _, sp := range s.Slots {
			if kind, ok := want[sp.Name]; ok && sp.Kind != kind {
				t.Errorf("%s slot %s has kind %q, want %q", s.Kind, sp.Name, sp.Kind, kind)
			}
		}
	}
}

func TestIntentClone_IsDeep(t *testing.T) {
	in := Intent{Kind: IntentCreateTask, Slots: map[SlotName]string{SlotTitle: "a"}}
	out := in.Clone()
	out.Slots[SlotTitle] = "b"
	if in.Slots[SlotTitle] != "a" {
		t.Error("Clone shares the slot map")
	}
}

func TestOperationPlan_Validate(t *testing.T) {
	title := "x"
	tests := []struct {
		name    string
		plan    *OperationPlan
		wantErr bool
	}{
		{"create ok", &OperationPlan{Op: OpCreateTask, Params: PlanParams{Task: &NewTask{Title: "a", Priority: PriorityMedium, Status: StatusPending}}}, false},
		{"create no title", &OperationPlan{Op: OpCreateTask, Params: PlanParams{Task: &NewTask{Priority: PriorityMedium, Status: StatusPending}}}, true},
		{"update unresolved", &OperationPlan{Op: OpUpdateTask, Params: PlanParams{Update: TaskUpdate{Title: &title}}}, true},
		{"update empty", &OperationPlan{Op: OpUpdateTask, Params: PlanParams{TaskID: 3}}, true},
		{"update ok", &OperationPlan{Op: OpUpdateTask, Params: PlanParams{TaskID: 3, Update: TaskUpdate{Title: &title}}}, false},
		{"bulk no filter", &OperationPlan{Op: OpBulkDeleteTasks}, true},
		{"bulk unconstrained", &OperationPlan{Op: OpBulkDeleteTasks, Filter: &TaskFilter{}}, true},
		{"bulk all", &OperationPlan{Op: OpBulkDeleteTasks, Filter: &TaskFilter{All: true}}, false},
		{"add tag by name", &OperationPlan{Op: OpAddTag, Params: PlanParams{TaskID: 1, TagName: "urgent"}}, false},
		{"remove tag by name", &OperationPlan{Op: OpRemoveTag, Params: PlanParams{TaskID: 1, TagName: "urgent"}}, true},
		{"list", &OperationPlan{Op: OpListTasks}, false},
		{"bogus op", &OperationPlan{Op: "drop_table"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("turn: %w", &ExecutionError{Op: OpCreateTask, Err: base})

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatal("errors.As failed")
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is did not reach the wrapped error")
	}
}
