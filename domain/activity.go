package domain

import "time"

// ActivityCategory buckets activity records for querying and pruning.
type ActivityCategory string

const (
	CategoryTask     ActivityCategory = "task"
	CategoryUser     ActivityCategory = "user"
	CategorySystem   ActivityCategory = "system"
	CategorySecurity ActivityCategory = "security"
)

// ActivitySeverity ranks how much an operator should care.
type ActivitySeverity string

const (
	SeverityLow      ActivitySeverity = "low"
	SeverityMedium   ActivitySeverity = "medium"
	SeverityHigh     ActivitySeverity = "high"
	SeverityCritical ActivitySeverity = "critical"
)

// Activity action names. Every successful mutation and auth event maps
// to exactly one.
const (
	ActionTaskCreated      = "task_created"
	ActionTaskUpdated      = "task_updated"
	ActionTaskMoved        = "task_moved"
	ActionTaskAssigned     = "task_assigned"
	ActionTaskUnassigned   = "task_unassigned"
	ActionTaskCommented    = "task_commented"
	ActionTaskArchived     = "task_archived"
	ActionTaskDeleted      = "task_deleted"
	ActionConflictDetected = "conflict_detected"
	ActionConflictResolved = "conflict_resolved"
	ActionLogin            = "login"
	ActionLogout           = "logout"
	ActionRegistered       = "registered"
	ActionPasswordChanged  = "password_changed"
)

// Activity is an immutable record of one state change or auth event.
// Description is rendered from the template table at write time so
// consumers never need the templates.
type Activity struct {
	ID          string           `json:"id"`
	Action      string           `json:"action"`
	Actor       string           `json:"actor"`
	Target      string           `json:"target,omitempty"`
	TargetKind  string           `json:"target_kind,omitempty"`
	Description string           `json:"description"`
	Before      *Task            `json:"before,omitempty"`
	After       *Task            `json:"after,omitempty"`
	Category    ActivityCategory `json:"category"`
	Severity    ActivitySeverity `json:"severity"`
	ConflictID  string           `json:"conflict_id,omitempty"`
	IsResolved  bool             `json:"is_resolved"`
	CreatedAt   time.Time        `json:"created_at"`
	IP          string           `json:"ip,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
}
