package domain

import "time"

// ResolutionStrategy picks how a detected conflict is settled.
type ResolutionStrategy string

const (
	ResolveMerge      ResolutionStrategy = "merge"
	ResolveTakeMine   ResolutionStrategy = "take-mine"
	ResolveTakeTheirs ResolutionStrategy = "take-theirs"
)

func (s ResolutionStrategy) Valid() bool {
	switch s {
	case ResolveMerge, ResolveTakeMine, ResolveTakeTheirs:
		return true
	}
	return false
}

// ConflictDescriptor is the structured payload attached to a CONFLICT
// failure. ServerTask is the state at detection time; it doubles as
// the merge base.
type ConflictDescriptor struct {
	ConflictID     string `json:"conflict_id"`
	TaskID         string `json:"task_id"`
	ClientVersion  int64  `json:"client_version"`
	ServerVersion  int64  `json:"server_version"`
	ServerTask     *Task  `json:"server_task"`
	LastModifiedBy string `json:"last_modified_by"`
}

// Conflict is the controller's record of a detected version mismatch.
// ClientPatch preserves the losing write so a later merge can replay
// it without the client resending anything.
type Conflict struct {
	ConflictDescriptor
	ClientPatch TaskPatch
	RaisedBy    string
	DetectedAt  time.Time
}

// EditSession is the advisory "being edited by X" marker for a task.
// It is never enforced on the mutation path.
type EditSession struct {
	TaskID    string    `json:"task_id"`
	EditorID  string    `json:"editor_id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}
