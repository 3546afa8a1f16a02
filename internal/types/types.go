// Package types provides shared type definitions used across tasknerd packages.
// This package exists to break import cycles between the store, the
// interpreter stages, and the transports. Types in this package should be
// foundational data structures with no complex dependencies.
package types

import (
	"strings"
	"time"
)

// =============================================================================
// TASK DOMAIN MODELS
// =============================================================================

// Priority is a task priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TaskStatus is a task lifecycle status.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a stored task row, joined with its project/assignee names.
type Task struct {
	ID           int64      `json:"task_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProjectID    *int64     `json:"project_id"`
	ProjectName  string     `json:"project_name,omitempty"`
	AssigneeID   *int64     `json:"assigned_to"`
	AssigneeName string     `json:"assignee,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	Tags         []string   `json:"tags,omitempty"`
}

// Project groups tasks.
type Project struct {
	ID          int64     `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	TaskCount   int       `json:"task_count"`
}

// User is a task creator or assignee.
type User struct {
	ID        int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag is a free label, unique per creator.
type Tag struct {
	ID        int64  `json:"tag_id"`
	Name      string `json:"name"`
	CreatedBy int64  `json:"created_by"`
}

// SchemaColumn describes one column of a store table.
type SchemaColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// SchemaTable describes one store table.
type SchemaTable struct {
	Name    string         `json:"name"`
	Columns []SchemaColumn `json:"columns"`
}

// TaskDraft is a model-generated task that has not been persisted yet.
type TaskDraft struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          Priority `json:"priority"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
}

// TaskRef is a lightweight pointer to a task that was shown to the user.
type TaskRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// =============================================================================
// TURN INPUT
// =============================================================================

// Utterance is one free-text request. Immutable once received.
type Utterance struct {
	Text       string    `json:"text"`
	SessionID  string    `json:"session_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// =============================================================================
// RESOLUTION
// =============================================================================

// EntityKind names what a raw reference should resolve to.
type EntityKind string

const (
	EntityNone     EntityKind = ""
	EntityProject  EntityKind = "project"
	EntityUser     EntityKind = "user"
	EntityTag      EntityKind = "tag"
	EntityTask     EntityKind = "task"
	EntityDate     EntityKind = "date"
	EntityPriority EntityKind = "priority"
	EntityStatus   EntityKind = "status"
)

// ResolutionStatus is the outcome of a single resolution.
type ResolutionStatus int

const (
	Resolved ResolutionStatus = iota
	Ambiguous
	NotFound
)

func (s ResolutionStatus) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Candidate is one possible match for an ambiguous reference.
type Candidate struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Distance int    `json:"-"`
}

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolvedEntity is the result of resolving one raw reference.
type ResolvedEntity struct {
	Kind       EntityKind
	Status     ResolutionStatus
	Raw        string
	ID         int64
	Name       string
	Literal    string
	Time       *time.Time
	Range      *DateRange
	Candidates []Candidate
}

// OK reports whether the entity resolved to exactly one value.
func (e ResolvedEntity) OK() bool { return e.Status == Resolved }

// =============================================================================
// REPLY CONTRACT
// =============================================================================

// ReplyType discriminates reply payloads for clients.
type ReplyType string

const (
	ReplyResult               ReplyType = "result"
	ReplyClarification        ReplyType = "clarification"
	ReplyConfirmationRequired ReplyType = "confirmation_required"
	ReplyError                ReplyType = "error"
	ReplyUnknown              ReplyType = "unknown"
)

// Reply is what every transport sends back for a turn.
type Reply struct {
	Success  bool        `json:"success"`
	Response string      `json:"response"`
	Data     interface{} `json:"data"`
	Type     ReplyType   `json:"type"`
}

// OperationSummary records the last executed operation for a session.
type OperationSummary struct {
	Op       OpKind    `json:"op"`
	At       time.Time `json:"at"`
	Affected int       `json:"affected"`
}

// normalizeLabel lowercases and strips separators so "create_task",
// "Create-Task" and "CreateTask" compare equal.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
