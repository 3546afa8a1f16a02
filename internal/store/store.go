// Package store persists tasks, projects, users and tags in SQLite.
// The interpreter only reaches the store through the Reader, Tx and Store
// interfaces declared here.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasknerd/internal/types"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// Constraint names reported by ConstraintError.
const (
	ConstraintUnique     = "unique"
	ConstraintForeignKey = "foreign_key"
	ConstraintCheck      = "check"
	ConstraintNotNull    = "not_null"
)

// ConstraintError reports a violated table constraint.
type ConstraintError struct {
	Constraint string
	Detail     string // e.g. "users.email"
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s constraint violated on %s", e.Constraint, e.Detail)
	}
	return fmt.Sprintf("%s constraint violated", e.Constraint)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Reader is the read side of the store contract.
type Reader interface {
	GetTask(ctx context.Context, id int64) (types.Task, error)
	ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error)
	CountTasks(ctx context.Context, f types.TaskFilter) (int, error)

	GetProject(ctx context.Context, id int64) (types.Project, error)
	ListProjects(ctx context.Context) ([]types.Project, error)

	GetUser(ctx context.Context, id int64) (types.User, error)
	ListUsers(ctx context.Context, search string) ([]types.User, error)

	GetTag(ctx context.Context, id int64) (types.Tag, error)
	ListTags(ctx context.Context) ([]types.Tag, error)

	DescribeSchema(ctx context.Context) ([]types.SchemaTable, error)

	// DefaultUserID is the creator recorded on rows made by the interpreter.
	DefaultUserID() int64
}

// Tx is one atomic unit of work. Everything done through a Tx commits or
// rolls back together.
type Tx interface {
	Reader

	CreateTask(ctx context.Context, t types.NewTask) (types.Task, error)
	UpdateTask(ctx context.Context, id int64, u types.TaskUpdate) (types.Task, error)
	DeleteTask(ctx context.Context, id int64) (types.Task, error)
	// UpdateTasks and DeleteTasks return the ids of the affected rows.
	UpdateTasks(ctx context.Context, f types.TaskFilter, u types.TaskUpdate) ([]int64, error)
	DeleteTasks(ctx context.Context, f types.TaskFilter) ([]int64, error)

	CreateProject(ctx context.Context, p types.NewProject) (types.Project, error)
	// GetOrCreateProject returns the lowest-id project named name
	// (case-insensitive) or creates it; created reports which happened.
	GetOrCreateProject(ctx context.Context, name, description string) (p types.Project, created bool, err error)
	DeleteProjects(ctx context.Context, ids []int64, all bool) ([]int64, error)

	CreateUser(ctx context.Context, u types.NewUser) (types.User, error)

	CreateTag(ctx context.Context, name string) (types.Tag, error)
	AttachTag(ctx context.Context, taskID, tagID int64) error
	// DetachTag reports whether the association existed.
	DetachTag(ctx context.Context, taskID, tagID int64) (bool, error)
}

// Store is the full contract: reads plus transactional writes.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// mapError translates driver errors into ErrNotFound / *ConstraintError.
// Both SQLite drivers surface the engine's message text, which is the
// only representation they share.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConstraintError
	if errors.As(err, &ce) || errors.Is(err, ErrNotFound) {
		return err
	}
	msg := err.Error()
	kinds := []struct {
		marker     string
		constraint string
	}{
		{"UNIQUE constraint failed", ConstraintUnique},
		{"FOREIGN KEY constraint failed", ConstraintForeignKey},
		{"CHECK constraint failed", ConstraintCheck},
		{"NOT NULL constraint failed", ConstraintNotNull},
	}
	for _, k := range kinds {
		if i := strings.Index(msg, k.marker); i >= 0 {
			detail := strings.TrimSpace(strings.TrimPrefix(msg[i+len(k.marker):], ":"))
			if j := strings.Index(detail, " ("); j >= 0 {
				detail = detail[:j]
			}
			return &ConstraintError{Constraint: k.constraint, Detail: detail, Err: err}
		}
	}
	return err
}
