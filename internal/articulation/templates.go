package articulation

import (
	"fmt"
	"strings"

	"tasknerd/internal/types"
)

// Fixed sentences shared with transports and tests.
const (
	UnknownResponse      = "Sorry, I didn't understand that request. Could you rephrase it?"
	NoTasksResponse      = "No tasks found matching the specified criteria."
	AllTasksDeleted      = "All tasks have been deleted successfully."
	AllProjectsDeleted   = "All projects have been deleted successfully."
	SchemaResponseHeader = "Here are the database tables and their schema:"
)

// maxListedRows bounds the rows spelled out in a list sentence; the payload
// always carries every row.
const maxListedRows = 20

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func statusText(s types.TaskStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// taskDetails renders the bracketed attributes of a task line.
func taskDetails(t types.Task) string {
	parts := []string{statusText(t.Status), string(t.Priority) + " priority"}
	if t.DueDate != nil {
		parts = append(parts, "due "+t.DueDate.Format("2006-01-02"))
	}
	if t.ProjectName != "" {
		parts = append(parts, "project "+t.ProjectName)
	}
	if t.AssigneeName != "" {
		parts = append(parts, "assigned to "+t.AssigneeName)
	}
	if len(t.Tags) > 0 {
		parts = append(parts, "tags "+strings.Join(t.Tags, ", "))
	}
	return strings.Join(parts, "; ")
}

func writeTaskLines(sb *strings.Builder, tasks []types.Task) {
	for i, t := range tasks {
		if i == maxListedRows {
			fmt.Fprintf(sb, "\n...and %d more", len(tasks)-maxListedRows)
			return
		}
		fmt.Fprintf(sb, "\n%d. %s (#%d) [%s]", i+1, t.Title, t.ID, taskDetails(t))
	}
}

// changedFields describes a TaskUpdate for a confirmation sentence.
func changedFields(u types.TaskUpdate, t *types.Task) string {
	var parts []string
	if u.Title != nil {
		parts = append(parts, fmt.Sprintf("title '%s'", *u.Title))
	}
	if u.Description != nil {
		parts = append(parts, "description")
	}
	if u.Status != nil {
		parts = append(parts, "status "+statusText(*u.Status))
	}
	if u.Priority != nil {
		parts = append(parts, "priority "+string(*u.Priority))
	}
	if u.DueDate != nil {
		parts = append(parts, "due date "+u.DueDate.Format("2006-01-02"))
	}
	if u.ProjectID != nil {
		if t != nil && t.ProjectName != "" {
			parts = append(parts, fmt.Sprintf("project '%s'", t.ProjectName))
		} else {
			parts = append(parts, fmt.Sprintf("project #%d", *u.ProjectID))
		}
	}
	if u.AssigneeID != nil {
		if t != nil && t.AssigneeName != "" {
			parts = append(parts, "assignee "+t.AssigneeName)
		} else {
			parts = append(parts, fmt.Sprintf("assignee #%d", *u.AssigneeID))
		}
	}
	return strings.Join(parts, ", ")
}

// resultSentence is the deterministic reply for a successful execution.
func resultSentence(res *types.ExecutionResult) string {
	plan := res.Plan
	var sb strings.Builder

	switch plan.Op {
	case types.OpCreateTask:
		t := res.Tasks[0]
		fmt.Fprintf(&sb, "Created task '%s' (#%d, %s priority", t.Title, t.ID, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&sb, ", due %s", t.DueDate.Format("2006-01-02"))
		}
		if t.ProjectName != "" {
			fmt.Fprintf(&sb, ", project %s", t.ProjectName)
		}
		if t.AssigneeName != "" {
			fmt.Fprintf(&sb, ", assigned to %s", t.AssigneeName)
		}
		sb.WriteString(")")

	case types.OpListTasks:
		if len(res.Tasks) == 0 {
			return NoTasksResponse
		}
		fmt.Fprintf(&sb, "Found %s:", plural(len(res.Tasks), "task", "tasks"))
		writeTaskLines(&sb, res.Tasks)

	case types.OpUpdateTask:
		t := res.Tasks[0]
		fmt.Fprintf(&sb, "Updated task '%s' (#%d): %s", t.Title, t.ID, changedFields(plan.Params.Update, &t))

	case types.OpDeleteTask:
		t := res.Tasks[0]
		fmt.Fprintf(&sb, "Deleted task '%s' (#%d)", t.Title, t.ID)

	case types.OpBulkUpdateTasks:
		if res.Count == 0 {
			return "No tasks matched, so nothing was updated."
		}
		fmt.Fprintf(&sb, "Updated %s: %s", plural(res.Count, "task", "tasks"), changedFields(plan.Params.Update, nil))

	case types.OpBulkDeleteTasks:
		if plan.Filter != nil && plan.Filter.All {
			return AllTasksDeleted
		}
		if res.Count == 0 {
			return "No tasks matched, so nothing was deleted."
		}
		fmt.Fprintf(&sb, "Deleted %s", plural(res.Count, "task", "tasks"))

	case types.OpCreateProject:
		p := res.Projects[0]
		fmt.Fprintf(&sb, "Created project '%s' (#%d)", p.Name, p.ID)

	case types.OpListProjects:
		if len(res.Projects) == 0 {
			return "There are no projects yet."
		}
		fmt.Fprintf(&sb, "Found %s:", plural(len(res.Projects), "project", "projects"))
		for i, p := range res.Projects {
			if i == maxListedRows {
				fmt.Fprintf(&sb, "\n...and %d more", len(res.Projects)-maxListedRows)
				break
			}
			fmt.Fprintf(&sb, "\n%d. %s (#%d, %s)", i+1, p.Name, p.ID, plural(p.TaskCount, "task", "tasks"))
		}

	case types.OpDeleteProjects:
		if plan.Params.AllProjects {
			return AllProjectsDeleted
		}
		fmt.Fprintf(&sb, "Successfully deleted %d project(s)", res.Count)
		if len(res.Projects) > 0 {
			names := make([]string, len(res.Projects))
			for i, p := range res.Projects {
				names[i] = "'" + p.Name + "'"
			}
			sb.WriteString(": " + strings.Join(names, ", "))
		}

	case types.OpAddTag:
		t := res.Tasks[0]
		fmt.Fprintf(&sb, "Tagged task '%s' (#%d) with '%s'", t.Title, t.ID, res.Tag.Name)

	case types.OpRemoveTag:
		t := res.Tasks[0]
		if res.Count == 0 {
			fmt.Fprintf(&sb, "Task '%s' (#%d) was not tagged '%s'", t.Title, t.ID, res.Tag.Name)
		} else {
			fmt.Fprintf(&sb, "Removed tag '%s' from task '%s' (#%d)", res.Tag.Name, t.Title, t.ID)
		}

	case types.OpCreateUser:
		u := res.Users[0]
		fmt.Fprintf(&sb, "Created user '%s' <%s> (#%d)", u.Username, u.Email, u.ID)

	case types.OpListUsers:
		if len(res.Users) == 0 {
			return "No users found."
		}
		fmt.Fprintf(&sb, "Found %s:", plural(len(res.Users), "user", "users"))
		for i, u := range res.Users {
			fmt.Fprintf(&sb, "\n%d. %s <%s> (#%d)", i+1, u.Username, u.Email, u.ID)
		}

	case types.OpGenerateTasks:
		fmt.Fprintf(&sb, "Generated %d tasks successfully. You can now add these tasks to your project.", len(res.Drafts))
		for i, d := range res.Drafts {
			fmt.Fprintf(&sb, "\n%d. %s (%s priority", i+1, d.Title, d.Priority)
			if d.EstimatedDuration != "" {
				fmt.Fprintf(&sb, ", about %s", d.EstimatedDuration)
			}
			sb.WriteString(")")
		}
		return sb.String()

	case types.OpImportTasks:
		fmt.Fprintf(&sb, "Successfully imported %d tasks", len(res.Tasks))
		if len(res.Projects) > 0 {
			fmt.Fprintf(&sb, " to project '%s'", res.Projects[0].Name)
		}
		sb.WriteString(". You can now view, edit, or manage these tasks.")
		return sb.String()

	case types.OpShowSchema:
		sb.WriteString(SchemaResponseHeader)
		for _, table := range res.Schema {
			cols := make([]string, len(table.Columns))
			for i, c := range table.Columns {
				col := c.Name + " " + c.Type
				if c.PrimaryKey {
					col += " primary key"
				} else if !c.Nullable {
					col += " not null"
				}
				cols[i] = col
			}
			fmt.Fprintf(&sb, "\n%s: %s", table.Name, strings.Join(cols, ", "))
		}
		return sb.String()

	default:
		fmt.Fprintf(&sb, "Done (%s)", plan.Op)
	}
	return sb.String()
}

// confirmationSentence describes a held bulk plan.
func confirmationSentence(plan *types.OperationPlan) string {
	var target string
	switch {
	case plan.Op == types.OpDeleteProjects && plan.Params.AllProjects:
		target = "delete ALL projects"
	case plan.Op == types.OpDeleteProjects:
		target = fmt.Sprintf("delete %s", plural(len(plan.Params.ProjectIDs), "project", "projects"))
	case plan.Op == types.OpBulkDeleteTasks:
		target = "delete " + filterText(plan.Filter)
	case plan.Op == types.OpBulkUpdateTasks:
		target = fmt.Sprintf("update %s (%s)", filterText(plan.Filter), changedFields(plan.Params.Update, nil))
	default:
		target = string(plan.Op)
	}
	return fmt.Sprintf("This will %s. Reply 'yes' to confirm or 'no' to cancel.", target)
}

// filterText describes which tasks a bulk filter selects.
func filterText(f *types.TaskFilter) string {
	if f == nil || f.All {
		return "ALL tasks"
	}
	var parts []string
	if len(f.IDs) > 0 {
		ids := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		parts = append(parts, "tasks "+strings.Join(ids, ", "))
	}
	switch {
	case f.MinID != nil && f.MaxID != nil:
		parts = append(parts, fmt.Sprintf("tasks #%d to #%d", *f.MinID, *f.MaxID))
	case f.MinID != nil:
		parts = append(parts, fmt.Sprintf("tasks from #%d on", *f.MinID))
	case f.MaxID != nil:
		parts = append(parts, fmt.Sprintf("tasks up to #%d", *f.MaxID))
	}
	if f.Status != nil {
		parts = append(parts, statusText(*f.Status)+" tasks")
	}
	if f.Priority != nil {
		parts = append(parts, string(*f.Priority)+" priority tasks")
	}
	if f.ProjectID != nil {
		parts = append(parts, fmt.Sprintf("tasks in project #%d", *f.ProjectID))
	}
	if len(parts) == 0 {
		return "the selected tasks"
	}
	return "all " + strings.Join(parts, " that are also ")
}
