package task

import (
	"context"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

// MoveTask removes the task from its current column ordering and
// inserts it at toPosition in the target column (clamped), renumbering
// only the siblings whose position actually changes. The moved task's
// version bumps even when the ordering ends up identical.
func (uc *UseCase) MoveTask(ctx context.Context, taskID string, toStatus domain.Status, toPosition int, knownVersion int64, actor Actor) (*Result, error) {
	if !toStatus.Valid() {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "to_status", Reason: "unknown column"})
	}

	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.checkVersion(current, &knownVersion, domain.TaskPatch{Status: &toStatus}, actor); err != nil {
		return nil, err
	}

	before := current.Clone()
	updated := current.Clone()

	var shifts []repository.PositionShift
	if toStatus == current.Status {
		shifts, updated.Position, err = uc.reorderWithinColumn(ctx, current, toPosition)
	} else {
		updated.Status = toStatus
		shifts, updated.Position, err = uc.insertAcrossColumns(ctx, current, toStatus, toPosition)
	}
	if err != nil {
		return nil, err
	}

	updated.Version = before.Version + 1
	updated.LastModifiedAt = uc.now()
	updated.LastModifiedBy = actor.Principal.UserID

	if err := uc.tasks.Update(ctx, updated, before.Version); err != nil {
		return nil, uc.internal("failed to persist move", err)
	}
	if err := uc.tasks.ShiftPositions(ctx, shifts, actor.Principal.UserID, updated.LastModifiedAt); err != nil {
		return nil, uc.internal("failed to renumber columns", err)
	}

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskMoved, updated.ID, movePayload(before, updated, actor))}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: domain.ActionTaskMoved,
		Actor:  actor.Principal.UserID,
		Target: updated.ID, TargetKind: "task",
		Before: before, After: updated.Clone(),
		IsResolved: true,
	})
	return &Result{Task: updated, Events: events}, nil
}

// reorderWithinColumn removes the task at its current index and
// reinserts it at min(j, n-1), renumbering only moved siblings.
func (uc *UseCase) reorderWithinColumn(ctx context.Context, task *domain.Task, toPosition int) ([]repository.PositionShift, int, error) {
	column, err := uc.tasks.ListColumn(ctx, task.Status)
	if err != nil {
		return nil, 0, uc.internal("failed to read column", err)
	}

	without := removeTask(column, task.ID)
	j := clamp(toPosition, 0, len(column)-1)

	ordering := insertAt(without, *task, j)
	shifts := siblingShifts(ordering, task.ID)
	return shifts, j, nil
}

// insertAcrossColumns compacts the source column and opens a slot at
// the clamped target index.
func (uc *UseCase) insertAcrossColumns(ctx context.Context, task *domain.Task, toStatus domain.Status, toPosition int) ([]repository.PositionShift, int, error) {
	source, err := uc.tasks.ListColumn(ctx, task.Status)
	if err != nil {
		return nil, 0, uc.internal("failed to read source column", err)
	}
	target, err := uc.tasks.ListColumn(ctx, toStatus)
	if err != nil {
		return nil, 0, uc.internal("failed to read target column", err)
	}

	j := clamp(toPosition, 0, len(target))

	sourceOrdering := removeTask(source, task.ID)
	shifts := siblingShifts(sourceOrdering, task.ID)

	targetOrdering := insertAt(target, *task, j)
	shifts = append(shifts, siblingShifts(targetOrdering, task.ID)...)
	return shifts, j, nil
}

// relocateAcrossColumns is the update-path variant of a column change:
// the task appends to the end of the target column.
func (uc *UseCase) relocateAcrossColumns(ctx context.Context, before, updated *domain.Task) ([]repository.PositionShift, error) {
	source, err := uc.tasks.ListColumn(ctx, before.Status)
	if err != nil {
		return nil, uc.internal("failed to read source column", err)
	}
	target, err := uc.tasks.ListColumn(ctx, updated.Status)
	if err != nil {
		return nil, uc.internal("failed to read target column", err)
	}

	updated.Position = nextPosition(target)
	return siblingShifts(removeTask(source, before.ID), before.ID), nil
}

// compactColumn closes the gap left by an archived or deleted task so
// sibling positions stay dense.
func (uc *UseCase) compactColumn(ctx context.Context, status domain.Status, removedID string) ([]repository.PositionShift, error) {
	column, err := uc.tasks.ListColumn(ctx, status)
	if err != nil {
		return nil, uc.internal("failed to read column", err)
	}
	return siblingShifts(removeTask(column, removedID), removedID), nil
}

// siblingShifts diffs the new ordering against stored positions,
// emitting a shift for every sibling that lands somewhere new.
func siblingShifts(ordering []domain.Task, movedID string) []repository.PositionShift {
	var shifts []repository.PositionShift
	for index, t := range ordering {
		if t.ID == movedID || t.Position == index {
			continue
		}
		shifts = append(shifts, repository.PositionShift{ID: t.ID, Position: index})
	}
	return shifts
}

func removeTask(column []domain.Task, id string) []domain.Task {
	out := make([]domain.Task, 0, len(column))
	for _, t := range column {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func insertAt(column []domain.Task, task domain.Task, index int) []domain.Task {
	if index > len(column) {
		index = len(column)
	}
	out := make([]domain.Task, 0, len(column)+1)
	out = append(out, column[:index]...)
	out = append(out, task)
	out = append(out, column[index:]...)
	return out
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func movePayload(before, after *domain.Task, actor Actor) interface{} {
	return struct {
		Task         *domain.Task  `json:"task"`
		FromStatus   domain.Status `json:"from_status"`
		FromPosition int           `json:"from_position"`
		Actor        string        `json:"actor"`
	}{after, before.Status, before.Position, actor.Principal.UserID}
}
