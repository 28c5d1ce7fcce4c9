package conflict

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
)

// Controller tracks detected version conflicts and the advisory
// per-task edit sessions. Both live in memory only: conflicts are a
// short-lived negotiation with one client, edit sessions die with the
// connection that opened them.
type Controller struct {
	logger *zap.Logger

	mu        sync.Mutex
	conflicts map[string]*domain.Conflict
	edits     map[string]*domain.EditSession
}

func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		logger:    logger,
		conflicts: make(map[string]*domain.Conflict),
		edits:     make(map[string]*domain.EditSession),
	}
}

// Detect registers a version mismatch and returns the descriptor the
// CONFLICT failure carries. The losing patch is kept so a later merge
// can replay it.
func (c *Controller) Detect(serverTask *domain.Task, clientVersion int64, patch domain.TaskPatch, raisedBy string) *domain.ConflictDescriptor {
	conflict := &domain.Conflict{
		ConflictDescriptor: domain.ConflictDescriptor{
			ConflictID:     uuid.NewString(),
			TaskID:         serverTask.ID,
			ClientVersion:  clientVersion,
			ServerVersion:  serverTask.Version,
			ServerTask:     serverTask.Clone(),
			LastModifiedBy: serverTask.LastModifiedBy,
		},
		ClientPatch: patch,
		RaisedBy:    raisedBy,
		DetectedAt:  time.Now(),
	}

	c.mu.Lock()
	c.conflicts[conflict.ConflictID] = conflict
	c.mu.Unlock()

	c.logger.Info("conflict detected",
		zap.String("task_id", serverTask.ID),
		zap.String("conflict_id", conflict.ConflictID),
		zap.Int64("client_version", clientVersion),
		zap.Int64("server_version", serverTask.Version))
	return &conflict.ConflictDescriptor
}

// Take removes and returns the conflict, validating it belongs to the
// given task.
func (c *Controller) Take(taskID, conflictID string) (*domain.Conflict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conflict, ok := c.conflicts[conflictID]
	if !ok || conflict.TaskID != taskID {
		return nil, domain.ErrConflictNotFound
	}
	delete(c.conflicts, conflictID)
	return conflict, nil
}

// Sweep drops conflicts that were never resolved. Stale entries only
// waste memory; the client recovers by re-reading and re-sending.
func (c *Controller) Sweep(olderThan time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, conflict := range c.conflicts {
		if conflict.DetectedAt.Before(olderThan) {
			delete(c.conflicts, id)
			removed++
		}
	}
	return removed
}

// StartEdit marks the task as being edited. When another user already
// holds the marker, theirs is returned so the caller can signal
// edit.contended; the marker itself is advisory and never blocks.
func (c *Controller) StartEdit(taskID, editorID, sessionID string) (session *domain.EditSession, contendedWith *domain.EditSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.edits[taskID]; ok && existing.EditorID != editorID {
		copied := *existing
		contendedWith = &copied
	}

	session = &domain.EditSession{
		TaskID:    taskID,
		EditorID:  editorID,
		SessionID: sessionID,
		StartedAt: time.Now(),
	}
	if contendedWith == nil {
		c.edits[taskID] = session
	}
	return session, contendedWith
}

// EndEdit clears the marker when held by the given editor.
func (c *Controller) EndEdit(taskID, editorID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.edits[taskID]
	if !ok || existing.EditorID != editorID {
		return false
	}
	delete(c.edits, taskID)
	return true
}

// Editing returns the current edit session for the task, if any.
func (c *Controller) Editing(taskID string) *domain.EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.edits[taskID]
	if !ok {
		return nil
	}
	copied := *existing
	return &copied
}

// ClearSession drops every edit marker held by a disconnected session
// and returns them so the gateway can broadcast edit.ended.
func (c *Controller) ClearSession(sessionID string) []domain.EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cleared []domain.EditSession
	for taskID, session := range c.edits {
		if session.SessionID == sessionID {
			cleared = append(cleared, *session)
			delete(c.edits, taskID)
		}
	}
	return cleared
}
