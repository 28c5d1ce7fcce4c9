package transport

import "github.com/flowboard/backend/domain"

type TaskCreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	AssignedTo  string   `json:"assigned_to"`
	DueDate     string   `json:"due_date"`
	Tags        []string `json:"tags"`
}

// TaskUpdateRequest carries a partial patch plus the version the
// client last saw. A nil KnownVersion skips the concurrency check.
type TaskUpdateRequest struct {
	Patch        domain.TaskPatch `json:"patch"`
	KnownVersion *int64           `json:"known_version"`
}

type TaskMoveRequest struct {
	ToStatus     string `json:"to_status"`
	ToPosition   int    `json:"to_position"`
	KnownVersion int64  `json:"known_version"`
}

type TaskAssignRequest struct {
	AssigneeID   string `json:"assignee_id"`
	KnownVersion int64  `json:"known_version"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type ConflictResolveRequest struct {
	ConflictID string `json:"conflict_id"`
	Strategy   string `json:"strategy"`
}

type LoginRequest struct {
	UserID string `json:"user_id"`
}

type ActivityPruneRequest struct {
	OlderThanDays int `json:"older_than_days"`
}
