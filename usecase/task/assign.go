package task

import (
	"context"

	"github.com/flowboard/backend/domain"
)

// AssignTask sets or clears the assignee under the version check. The
// empty assignee unassigns and emits task.unassigned.
func (uc *UseCase) AssignTask(ctx context.Context, taskID, assigneeID string, knownVersion int64, actor Actor) (*Result, error) {
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)
	return uc.assignLocked(ctx, taskID, assigneeID, knownVersion, actor, nil)
}

// SmartAssignTask asks the assignment engine for the fairest assignee
// and applies it through the normal version-checked assign path.
func (uc *UseCase) SmartAssignTask(ctx context.Context, taskID string, knownVersion int64, actor Actor) (*Result, error) {
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	// Existence and version are verified before the load scan so a
	// stale client fails with Conflict rather than NoEligibleUser.
	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.checkVersion(current, &knownVersion, domain.TaskPatch{}, actor); err != nil {
		return nil, err
	}

	assignee, err := uc.engine.PickAssignee(ctx)
	if err != nil {
		return nil, err
	}

	result, err := uc.assignLocked(ctx, taskID, assignee.ID, knownVersion, actor, assignee)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *UseCase) assignLocked(ctx context.Context, taskID, assigneeID string, knownVersion int64, actor Actor, assignee *domain.User) (*Result, error) {
	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.checkVersion(current, &knownVersion, domain.TaskPatch{AssignedTo: &assigneeID}, actor); err != nil {
		return nil, err
	}
	if err := uc.engine.ValidateAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	before := current.Clone()
	updated := current.Clone()
	updated.AssignedTo = assigneeID
	updated.Version = before.Version + 1
	updated.LastModifiedAt = uc.now()
	updated.LastModifiedBy = actor.Principal.UserID

	if err := uc.tasks.Update(ctx, updated, before.Version); err != nil {
		return nil, uc.internal("failed to persist assignment", err)
	}

	kind := domain.EventTaskAssigned
	action := domain.ActionTaskAssigned
	if assigneeID == "" {
		kind = domain.EventTaskUnassigned
		action = domain.ActionTaskUnassigned
	}

	event := domain.NewTaskEvent(kind, updated.ID, assignPayload(updated, before.AssignedTo, actor))
	if assigneeID != "" {
		event.Rooms = append(event.Rooms, domain.RoomUser(assigneeID))
	}

	events := []domain.Event{event}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: action,
		Actor:  actor.Principal.UserID,
		Target: updated.ID, TargetKind: "task",
		Before: before, After: updated.Clone(),
		IsResolved: true,
	})
	return &Result{Task: updated, Events: events, Assignee: assignee}, nil
}

func assignPayload(task *domain.Task, previousAssignee string, actor Actor) interface{} {
	return struct {
		Task             *domain.Task `json:"task"`
		PreviousAssignee string       `json:"previous_assignee,omitempty"`
		Actor            string       `json:"actor"`
	}{task, previousAssignee, actor.Principal.UserID}
}
