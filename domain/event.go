package domain

// Event kinds broadcast to rooms after a successful mutation.
const (
	EventTaskCreated      = "task.created"
	EventTaskUpdated      = "task.updated"
	EventTaskMoved        = "task.moved"
	EventTaskAssigned     = "task.assigned"
	EventTaskUnassigned   = "task.unassigned"
	EventTaskCommented    = "task.commented"
	EventTaskArchived     = "task.archived"
	EventTaskDeleted      = "task.deleted"
	EventEditStarted      = "edit.started"
	EventEditEnded        = "edit.ended"
	EventEditContended    = "edit.contended"
	EventTyping           = "typing"
	EventCursor           = "cursor"
	EventUsersUpdated     = "users.updated"
	EventActivityNew      = "activity.new"
	EventConflictDetected = "conflict.detected"
	EventConflictResolved = "conflict.resolved"
)

// Event is one derived fan-out unit produced by a mutation. Rooms
// names the destinations; the publisher delivers the same payload to
// each, excluding the originating session when one is known.
type Event struct {
	Kind    string      `json:"kind"`
	Rooms   []string    `json:"-"`
	Payload interface{} `json:"payload"`
}

// Room name helpers. The board and activity rooms are singletons.
const (
	RoomBoard    = "board"
	RoomActivity = "activity"
)

func RoomTask(taskID string) string { return "task:" + taskID }
func RoomUser(userID string) string { return "user:" + userID }

// NewTaskEvent builds an event targeting the board room and the
// task's own room.
func NewTaskEvent(kind, taskID string, payload interface{}) Event {
	return Event{
		Kind:    kind,
		Rooms:   []string{RoomBoard, RoomTask(taskID)},
		Payload: payload,
	}
}
