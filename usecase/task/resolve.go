package task

import (
	"context"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/usecase"
	"github.com/flowboard/backend/usecase/conflict"
)

// ResolveConflict settles a previously detected version conflict.
//
//	take-theirs: client changes stay discarded; the current server
//	             state is returned.
//	take-mine:   only the intent is recorded; the client re-sends the
//	             mutation with the fresh version.
//	merge:       the stored losing patch is folded against the conflict
//	             base and applied as a normal update at the current
//	             version.
//
// All three emit conflict.resolved to the task room and mark the
// detection activity resolved.
func (uc *UseCase) ResolveConflict(ctx context.Context, taskID, conflictID string, strategy domain.ResolutionStrategy, actor Actor) (*Result, error) {
	if !strategy.Valid() {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "strategy", Reason: "unknown strategy"})
	}

	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	resolved, err := uc.conflicts.Take(taskID, conflictID)
	if err != nil {
		return nil, err
	}

	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}

	result := &Result{Task: current}
	if strategy == domain.ResolveMerge {
		merged := conflict.MergePatch(resolved.ServerTask, current, resolved.ClientPatch)
		knownVersion := current.Version
		result, err = uc.updateLocked(ctx, taskID, merged, &knownVersion, actor, resolved)
		if err != nil {
			return nil, err
		}
	}

	if marker, ok := uc.recorder.(usecase.ConflictMarker); ok {
		marker.MarkResolved(ctx, conflictID, string(strategy))
	}

	event := domain.Event{
		Kind:  domain.EventConflictResolved,
		Rooms: []string{domain.RoomTask(taskID), domain.RoomBoard},
		Payload: struct {
			ConflictID string                    `json:"conflict_id"`
			TaskID     string                    `json:"task_id"`
			Strategy   domain.ResolutionStrategy `json:"strategy"`
			Task       *domain.Task              `json:"task"`
			ResolvedBy string                    `json:"resolved_by"`
		}{conflictID, taskID, strategy, result.Task, actor.Principal.UserID},
	}
	uc.dispatch(ctx, []domain.Event{event}, actor, &domain.Activity{
		Action: domain.ActionConflictResolved,
		Actor:  actor.Principal.UserID,
		Target: taskID, TargetKind: "task",
		ConflictID: conflictID,
		IsResolved: true,
	})

	result.Events = append(result.Events, event)
	return result, nil
}
