package types

import (
	"fmt"
	"time"
)

// OpKind is the store verb a plan executes.
type OpKind string

const (
	OpCreateTask      OpKind = "create_task"
	OpListTasks       OpKind = "list_tasks"
	OpUpdateTask      OpKind = "update_task"
	OpDeleteTask      OpKind = "delete_task"
	OpBulkUpdateTasks OpKind = "bulk_update_tasks"
	OpBulkDeleteTasks OpKind = "bulk_delete_tasks"
	OpCreateProject   OpKind = "create_project"
	OpListProjects    OpKind = "list_projects"
	OpDeleteProjects  OpKind = "delete_projects"
	OpAddTag          OpKind = "add_tag"
	OpRemoveTag       OpKind = "remove_tag"
	OpCreateUser      OpKind = "create_user"
	OpListUsers       OpKind = "list_users"
	OpGenerateTasks   OpKind = "generate_tasks"
	OpImportTasks     OpKind = "import_tasks"
	OpShowSchema      OpKind = "show_schema"
)

// TaskFilter selects tasks. An unconstrained filter matches every task;
// bulk plans must either constrain it or set All explicitly.
type TaskFilter struct {
	All        bool        `json:"all,omitempty"`
	IDs        []int64     `json:"ids,omitempty"`
	MinID      *int64      `json:"min_id,omitempty"` // inclusive
	MaxID      *int64      `json:"max_id,omitempty"` // inclusive
	Status     *TaskStatus `json:"status,omitempty"`
	Priority   *Priority   `json:"priority,omitempty"`
	ProjectID  *int64      `json:"project_id,omitempty"`
	AssigneeID *int64      `json:"assignee_id,omitempty"`
	TagID      *int64      `json:"tag_id,omitempty"`
	DueFrom    *time.Time  `json:"due_from,omitempty"`   // inclusive
	DueBefore  *time.Time  `json:"due_before,omitempty"` // exclusive
	Search     string      `json:"search,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// Constrained reports whether the filter narrows the task set at all.
func (f TaskFilter) Constrained() bool {
	return len(f.IDs) > 0 || f.MinID != nil || f.MaxID != nil || f.Status != nil ||
		f.Priority != nil || f.ProjectID != nil || f.AssigneeID != nil || f.TagID != nil ||
		f.DueFrom != nil || f.DueBefore != nil || f.Search != ""
}

// TaskUpdate holds the fields to change; nil means unchanged.
type TaskUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	ProjectID   *int64      `json:"project_id,omitempty"`
	AssigneeID  *int64      `json:"assignee_id,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil &&
		u.DueDate == nil && u.ProjectID == nil && u.AssigneeID == nil
}

// NewTask is a fully resolved task to insert.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
}

// NewProject is a project to insert.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewUser is a user to insert.
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PlanParams holds resolved ids and typed values only.
type PlanParams struct {
	Task        *NewTask    `json:"task,omitempty"`
	TaskID      int64       `json:"task_id,omitempty"`
	Update      TaskUpdate  `json:"update,omitempty"`
	Project     *NewProject `json:"project,omitempty"`
	ProjectIDs  []int64     `json:"project_ids,omitempty"`
	AllProjects bool        `json:"all_projects,omitempty"`
	TagID       int64       `json:"tag_id,omitempty"`
	TagName     string      `json:"tag_name,omitempty"` // set with TagID==0 to create the tag
	User        *NewUser    `json:"user,omitempty"`
	UserSearch  string      `json:"user_search,omitempty"`
	Goal        string      `json:"goal,omitempty"`
	Drafts      []TaskDraft `json:"drafts,omitempty"`

	// Import target: an existing project id, or a name to get-or-create.
	ImportProjectID   *int64 `json:"import_project_id,omitempty"`
	ImportProjectName string `json:"import_project_name,omitempty"`
}

// PlanOutcome is exactly one of *OperationPlan, *Clarification, *PlanningError.
type PlanOutcome interface {
	planOutcome()
}

// OperationPlan is a fully resolved, store-executable operation.
type OperationPlan struct {
	Op                   OpKind      `json:"op"`
	Intent               IntentKind  `json:"intent"`
	Params               PlanParams  `json:"params"`
	Filter               *TaskFilter `json:"filter,omitempty"`
	Bulk                 bool        `json:"bulk,omitempty"`
	RequiresConfirmation bool        `json:"requires_confirmation,omitempty"`
}

func (*OperationPlan) planOutcome() {}

// Validate checks that every reference the op needs is resolved.
func (p *OperationPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("nil plan")
	}
	pp := p.Params
	switch p.Op {
	case OpCreateTask:
		if pp.Task == nil || pp.Task.Title == "" {
			return fmt.Errorf("%s: missing title", p.Op)
		}
		if !pp.Task.Priority.Valid() || !pp.Task.Status.Valid() {
			return fmt.Errorf("%s: invalid priority or status", p.Op)
		}
	case OpUpdateTask:
		if pp.TaskID <= 0 {
			return fmt.Errorf("%s: unresolved task", p.Op)
		}
		if pp.Update.IsEmpty() {
			return fmt.Errorf("%s: nothing to update", p.Op)
		}
	case OpDeleteTask:
		if pp.TaskID <= 0 {
			return fmt.Errorf("%s: unresolved task", p.Op)
		}
	case OpBulkUpdateTasks, OpBulkDeleteTasks:
		if p.Filter == nil || (!p.Filter.All && !p.Filter.Constrained()) {
			return fmt.Errorf("%s: empty filter", p.Op)
		}
		if p.Op == OpBulkUpdateTasks && pp.Update.IsEmpty() {
			return fmt.Errorf("%s: nothing to update", p.Op)
		}
	case OpCreateProject:
		if pp.Project == nil || pp.Project.Name == "" {
			return fmt.Errorf("%s: missing name", p.Op)
		}
	case OpDeleteProjects:
		if !pp.AllProjects && len(pp.ProjectIDs) == 0 {
			return fmt.Errorf("%s: no projects", p.Op)
		}
	case OpAddTag, OpRemoveTag:
		if pp.TaskID <= 0 {
			return fmt.Errorf("%s: unresolved task", p.Op)
		}
		if pp.TagID <= 0 && (p.Op == OpRemoveTag || pp.TagName == "") {
			return fmt.Errorf("%s: unresolved tag", p.Op)
		}
	case OpCreateUser:
		if pp.User == nil || pp.User.Username == "" || pp.User.Email == "" {
			return fmt.Errorf("%s: missing username or email", p.Op)
		}
	case OpGenerateTasks:
		if pp.Goal == "" {
			return fmt.Errorf("%s: missing goal", p.Op)
		}
	case OpImportTasks:
		if len(pp.Drafts) == 0 {
			return fmt.Errorf("%s: no drafts", p.Op)
		}
	case OpListTasks, OpListProjects, OpListUsers, OpShowSchema:
	default:
		return fmt.Errorf("unknown op %q", p.Op)
	}
	return nil
}

// Clarification asks the user for one missing or ambiguous slot.
type Clarification struct {
	Slot       SlotName         `json:"slot"`
	Kind       EntityKind       `json:"kind,omitempty"`
	Reason     ResolutionStatus `json:"-"`
	Question   string           `json:"question"`
	Candidates []Candidate      `json:"candidates,omitempty"`
	Partial    Intent           `json:"partial"`
}

func (*Clarification) planOutcome() {}

// ExecutionResult is what the executor returns for a plan.
type ExecutionResult struct {
	Plan      *OperationPlan `json:"-"`
	Tasks     []Task         `json:"tasks,omitempty"`
	Projects  []Project      `json:"projects,omitempty"`
	Users     []User         `json:"users,omitempty"`
	Tag       *Tag           `json:"tag,omitempty"`
	Schema    []SchemaTable  `json:"schema,omitempty"`
	Drafts    []TaskDraft    `json:"drafts,omitempty"`
	Count     int            `json:"count"`
	SampleIDs []int64        `json:"sample_ids,omitempty"`
}
