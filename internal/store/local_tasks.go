package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

const taskSelect = `
SELECT t.task_id, t.title, t.description, t.status, t.priority, t.due_date,
       t.created_at, t.updated_at, t.project_id, COALESCE(p.name, ''),
       t.assigned_to, COALESCE(u.username, ''), t.created_by
FROM tasks t
LEFT JOIN projects p ON p.project_id = t.project_id
LEFT JOIN users u ON u.user_id = t.assigned_to`

// taskWhere renders f as a WHERE clause over alias t.
func taskWhere(f types.TaskFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if len(f.IDs) > 0 {
		conds = append(conds, "t.task_id IN ("+placeholders(len(f.IDs))+")")
		args = append(args, idArgs(f.IDs)...)
	}
	if f.MinID != nil {
		conds = append(conds, "t.task_id >= ?")
		args = append(args, *f.MinID)
	}
	if f.MaxID != nil {
		conds = append(conds, "t.task_id <= ?")
		args = append(args, *f.MaxID)
	}
	if f.Status != nil {
		conds = append(conds, "t.status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Priority != nil {
		conds = append(conds, "t.priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.ProjectID != nil {
		conds = append(conds, "t.project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.AssigneeID != nil {
		conds = append(conds, "t.assigned_to = ?")
		args = append(args, *f.AssigneeID)
	}
	if f.TagID != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.task_id AND tt.tag_id = ?)")
		args = append(args, *f.TagID)
	}
	if f.DueFrom != nil {
		conds = append(conds, "t.due_date >= ?")
		args = append(args, formatTime(*f.DueFrom))
	}
	if f.DueBefore != nil {
		conds = append(conds, "t.due_date < ?")
		args = append(args, formatTime(*f.DueBefore))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		conds = append(conds, "(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)")
		args = append(args, like, like)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanTask(sc interface{ Scan(...interface{}) error }) (types.Task, error) {
	var (
		t                  types.Task
		status, priority   string
		due                sql.NullString
		created, updated   string
		projectID, assigne sql.NullInt64
	)
	err := sc.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &due,
		&created, &updated, &projectID, &t.ProjectName, &assigne, &t.AssigneeName, &t.CreatedBy)
	if err != nil {
		return t, err
	}
	t.Status = types.TaskStatus(status)
	t.Priority = types.Priority(priority)
	t.DueDate = parseNullTime(due)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	t.ProjectID = nullInt(projectID)
	t.AssigneeID = nullInt(assigne)
	return t, nil
}

// GetTask implements Reader.
func (o *ops) GetTask(ctx context.Context, id int64) (types.Task, error) {
	row := o.q.QueryRowContext(ctx, taskSelect+" WHERE t.task_id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return t, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return t, err
	}
	tasks := []types.Task{t}
	if err := o.loadTags(ctx, tasks); err != nil {
		return t, err
	}
	return tasks[0], nil
}

// ListTasks implements Reader. Results are ordered by id.
func (o *ops) ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	where, args := taskWhere(f)
	query := taskSelect + where + " ORDER BY t.task_id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := o.loadTags(ctx, tasks); err != nil {
		return nil, err
	}
	logging.StoreDebug("ListTasks: %d rows", len(tasks))
	return tasks, nil
}

// CountTasks implements Reader.
func (o *ops) CountTasks(ctx context.Context, f types.TaskFilter) (int, error) {
	where, args := taskWhere(f)
	var n int
	err := o.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks t"+where, args...).Scan(&n)
	return n, err
}

func (o *ops) loadTags(ctx context.Context, tasks []types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[int64]int, len(tasks))
	ids := make([]int64, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		ids[i] = t.ID
	}
	rows, err := o.q.QueryContext(ctx,
		`SELECT tt.task_id, g.name FROM task_tags tt JOIN tags g ON g.tag_id = tt.tag_id
		 WHERE tt.task_id IN (`+placeholders(len(ids))+`) ORDER BY g.name`, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID int64
		var name string
		if err := rows.Scan(&taskID, &name); err != nil {
			return err
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Tags = append(tasks[i].Tags, name)
		}
	}
	return rows.Err()
}

// CreateTask implements Tx.
func (o *ops) CreateTask(ctx context.Context, t types.NewTask) (types.Task, error) {
	if t.Status == "" {
		t.Status = types.StatusPending
	}
	if t.Priority == "" {
		t.Priority = types.PriorityMedium
	}
	now := formatTime(o.now())
	res, err := o.q.ExecContext(ctx,
		`INSERT INTO tasks (title, description, status, priority, due_date, created_at, updated_at,
		                    project_id, assigned_to, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Status), string(t.Priority), formatTimePtr(t.DueDate),
		now, now, int64PtrArg(t.ProjectID), int64PtrArg(t.AssigneeID), o.defaultUserID,
	)
	if err != nil {
		return types.Task{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Task{}, err
	}
	logging.StoreDebug("Created task %d %q", id, t.Title)
	return o.GetTask(ctx, id)
}

// updateSet renders u as a SET clause; updated_at is always touched.
func (o *ops) updateSet(u types.TaskUpdate) (string, []interface{}) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(o.now())}
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*u.Priority))
	}
	if u.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, formatTime(*u.DueDate))
	}
	if u.ProjectID != nil {
		sets = append(sets, "project_id = ?")
		args = append(args, *u.ProjectID)
	}
	if u.AssigneeID != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, *u.AssigneeID)
	}
	return strings.Join(sets, ", "), args
}

// UpdateTask implements Tx.
func (o *ops) UpdateTask(ctx context.Context, id int64, u types.TaskUpdate) (types.Task, error) {
	set, args := o.updateSet(u)
	res, err := o.q.ExecContext(ctx, "UPDATE tasks SET "+set+" WHERE task_id = ?", append(args, id)...)
	if err != nil {
		return types.Task{}, mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return o.GetTask(ctx, id)
}

// DeleteTask implements Tx and returns the row as it was.
func (o *ops) DeleteTask(ctx context.Context, id int64) (types.Task, error) {
	t, err := o.GetTask(ctx, id)
	if err != nil {
		return t, err
	}
	if _, err := o.q.ExecContext(ctx, "DELETE FROM tasks WHERE task_id = ?", id); err != nil {
		return t, mapError(err)
	}
	return t, nil
}

func (o *ops) matchingTaskIDs(ctx context.Context, f types.TaskFilter) ([]int64, error) {
	where, args := taskWhere(f)
	rows, err := o.q.QueryContext(ctx, "SELECT t.task_id FROM tasks t"+where+" ORDER BY t.task_id", args...)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// UpdateTasks implements Tx.
func (o *ops) UpdateTasks(ctx context.Context, f types.TaskFilter, u types.TaskUpdate) ([]int64, error) {
	ids, err := o.matchingTaskIDs(ctx, f)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	set, args := o.updateSet(u)
	args = append(args, idArgs(ids)...)
	if _, err := o.q.ExecContext(ctx,
		"UPDATE tasks SET "+set+" WHERE task_id IN ("+placeholders(len(ids))+")", args...); err != nil {
		return nil, mapError(err)
	}
	logging.StoreDebug("UpdateTasks: %d rows", len(ids))
	return ids, nil
}

// DeleteTasks implements Tx.
func (o *ops) DeleteTasks(ctx context.Context, f types.TaskFilter) ([]int64, error) {
	ids, err := o.matchingTaskIDs(ctx, f)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	if _, err := o.q.ExecContext(ctx,
		"DELETE FROM tasks WHERE task_id IN ("+placeholders(len(ids))+")", idArgs(ids)...); err != nil {
		return nil, mapError(err)
	}
	logging.StoreDebug("DeleteTasks: %d rows", len(ids))
	return ids, nil
}
