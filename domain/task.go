package domain

import (
	"strings"
	"time"
)

// Status identifies the board column a task lives in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority ranks a task's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Comment is a single task comment. Comments are orthogonal to the
// version-checked fields and never bump the task version.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is the authoritative board item. Version starts at 1 and is
// bumped on every successful state-changing mutation, move and assign
// included; it is the basis for optimistic conflict detection.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	CreatedBy      string     `json:"created_by"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Position       int        `json:"position"`
	Version        int64      `json:"version"`
	Comments       []Comment  `json:"comments,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastModifiedAt time.Time  `json:"last_modified_at"`
	LastModifiedBy string     `json:"last_modified_by"`
	IsArchived     bool       `json:"is_archived"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	ArchivedBy     string     `json:"archived_by,omitempty"`
}

// NormalizedTitle folds a title for the case-insensitive uniqueness
// and reserved-word checks.
func NormalizedTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsOpen reports whether the task counts towards an assignee's active
// load (smart-assign input).
func (t *Task) IsOpen() bool {
	return t != nil && !t.IsArchived &&
		(t.Status == StatusTodo || t.Status == StatusInProgress)
}

// Clone returns a deep copy, used for conflict base snapshots and
// before/after deltas.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DueDate != nil {
		due := *t.DueDate
		cp.DueDate = &due
	}
	if t.ArchivedAt != nil {
		at := *t.ArchivedAt
		cp.ArchivedAt = &at
	}
	cp.Tags = append([]string(nil), t.Tags...)
	cp.Comments = append([]Comment(nil), t.Comments...)
	return &cp
}

// TaskPatch carries the fields a client wants to change. Nil pointers
// mean "leave unchanged"; AssignedTo uses a pointer so the empty
// string can express "unassign".
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.AssignedTo == nil && p.DueDate == nil && p.Tags == nil
}

// Board groups non-archived tasks by column, each column sorted by
// (position asc, created_at desc).
type Board struct {
	Todo       []Task `json:"todo"`
	InProgress []Task `json:"in-progress"`
	Done       []Task `json:"done"`
}
