package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tasknerd/internal/logging"
	"tasknerd/internal/types"
)

// =============================================================================
// PROJECTS
// =============================================================================

const projectSelect = `
SELECT p.project_id, p.name, p.description, p.created_at,
       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.project_id)
FROM projects p`

func scanProject(sc interface{ Scan(...interface{}) error }) (types.Project, error) {
	var p types.Project
	var created string
	if err := sc.Scan(&p.ID, &p.Name, &p.Description, &created, &p.TaskCount); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

// GetProject implements Reader.
func (o *ops) GetProject(ctx context.Context, id int64) (types.Project, error) {
	p, err := scanProject(o.q.QueryRowContext(ctx, projectSelect+" WHERE p.project_id = ?", id))
	if err == sql.ErrNoRows {
		return p, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProjects implements Reader.
func (o *ops) ListProjects(ctx context.Context) ([]types.Project, error) {
	rows, err := o.q.QueryContext(ctx, projectSelect+" ORDER BY p.project_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()
	var out []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProject implements Tx.
func (o *ops) CreateProject(ctx context.Context, p types.NewProject) (types.Project, error) {
	res, err := o.q.ExecContext(ctx,
		"INSERT INTO projects (name, description, created_at) VALUES (?, ?, ?)",
		p.Name, p.Description, formatTime(o.now()))
	if err != nil {
		return types.Project{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Project{}, err
	}
	logging.StoreDebug("Created project %d %q", id, p.Name)
	return o.GetProject(ctx, id)
}

// GetOrCreateProject implements Tx.
func (o *ops) GetOrCreateProject(ctx context.Context, name, description string) (types.Project, bool, error) {
	p, err := scanProject(o.q.QueryRowContext(ctx,
		projectSelect+" WHERE LOWER(p.name) = LOWER(?) ORDER BY p.project_id LIMIT 1", name))
	if err == nil {
		return p, false, nil
	}
	if err != sql.ErrNoRows {
		return p, false, err
	}
	p, err = o.CreateProject(ctx, types.NewProject{Name: name, Description: description})
	return p, err == nil, err
}

// DeleteProjects implements Tx. Tasks of deleted projects are kept with
// their project cleared.
func (o *ops) DeleteProjects(ctx context.Context, ids []int64, all bool) ([]int64, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if all {
		rows, err = o.q.QueryContext(ctx, "SELECT project_id FROM projects ORDER BY project_id")
	} else {
		if len(ids) == 0 {
			return nil, nil
		}
		rows, err = o.q.QueryContext(ctx,
			"SELECT project_id FROM projects WHERE project_id IN ("+placeholders(len(ids))+") ORDER BY project_id",
			idArgs(ids)...)
	}
	if err != nil {
		return nil, err
	}
	found, err := scanIDs(rows)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	if _, err := o.q.ExecContext(ctx,
		"DELETE FROM projects WHERE project_id IN ("+placeholders(len(found))+")", idArgs(found)...); err != nil {
		return nil, mapError(err)
	}
	logging.StoreDebug("DeleteProjects: %d rows", len(found))
	return found, nil
}

// =============================================================================
// USERS
// =============================================================================

func scanUser(sc interface{ Scan(...interface{}) error }) (types.User, error) {
	var u types.User
	var created string
	if err := sc.Scan(&u.ID, &u.Username, &u.Email, &created); err != nil {
		return u, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// GetUser implements Reader.
func (o *ops) GetUser(ctx context.Context, id int64) (types.User, error) {
	u, err := scanUser(o.q.QueryRowContext(ctx,
		"SELECT user_id, username, email, created_at FROM users WHERE user_id = ?", id))
	if err == sql.ErrNoRows {
		return u, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, err
}

// ListUsers implements Reader. search matches usernames case-insensitively.
func (o *ops) ListUsers(ctx context.Context, search string) ([]types.User, error) {
	query := "SELECT user_id, username, email, created_at FROM users"
	var args []interface{}
	if s := strings.TrimSpace(search); s != "" {
		query += " WHERE LOWER(username) LIKE ?"
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	rows, err := o.q.QueryContext(ctx, query+" ORDER BY user_id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	var out []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUser implements Tx.
func (o *ops) CreateUser(ctx context.Context, u types.NewUser) (types.User, error) {
	res, err := o.q.ExecContext(ctx,
		"INSERT INTO users (username, email, created_at) VALUES (?, ?, ?)",
		u.Username, u.Email, formatTime(o.now()))
	if err != nil {
		return types.User{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.User{}, err
	}
	return o.GetUser(ctx, id)
}

// =============================================================================
// TAGS
// =============================================================================

// GetTag implements Reader.
func (o *ops) GetTag(ctx context.Context, id int64) (types.Tag, error) {
	var t types.Tag
	err := o.q.QueryRowContext(ctx, "SELECT tag_id, name, created_by FROM tags WHERE tag_id = ?", id).
		Scan(&t.ID, &t.Name, &t.CreatedBy)
	if err == sql.ErrNoRows {
		return t, fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTags implements Reader.
func (o *ops) ListTags(ctx context.Context) ([]types.Tag, error) {
	rows, err := o.q.QueryContext(ctx, "SELECT tag_id, name, created_by FROM tags ORDER BY tag_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()
	var out []types.Tag
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTag implements Tx. Tags belong to the default user.
func (o *ops) CreateTag(ctx context.Context, name string) (types.Tag, error) {
	res, err := o.q.ExecContext(ctx, "INSERT INTO tags (name, created_by) VALUES (?, ?)", name, o.defaultUserID)
	if err != nil {
		return types.Tag{}, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Tag{}, err
	}
	return types.Tag{ID: id, Name: name, CreatedBy: o.defaultUserID}, nil
}

// AttachTag implements Tx. Attaching twice is a no-op.
func (o *ops) AttachTag(ctx context.Context, taskID, tagID int64) error {
	_, err := o.q.ExecContext(ctx, "INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)", taskID, tagID)
	return mapError(err)
}

// DetachTag implements Tx.
func (o *ops) DetachTag(ctx context.Context, taskID, tagID int64) (bool, error) {
	res, err := o.q.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = ? AND tag_id = ?", taskID, tagID)
	if err != nil {
		return false, mapError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// SCHEMA
// =============================================================================

// userTables are the tables ShowSchema describes, in display order.
var userTables = []string{"users", "projects", "tasks", "tags", "task_tags"}

// DescribeSchema implements Reader.
func (o *ops) DescribeSchema(ctx context.Context) ([]types.SchemaTable, error) {
	out := make([]types.SchemaTable, 0, len(userTables))
	for _, table := range userTables {
		rows, err := o.q.QueryContext(ctx,
			`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", table, err)
		}
		st := types.SchemaTable{Name: table}
		for rows.Next() {
			var col types.SchemaColumn
			var notNull, pk int
			if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk); err != nil {
				rows.Close()
				return nil, err
			}
			col.PrimaryKey = pk > 0
			col.Nullable = notNull == 0 && !col.PrimaryKey
			st.Columns = append(st.Columns, col)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
