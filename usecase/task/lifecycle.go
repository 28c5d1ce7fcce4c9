package task

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/flowboard/backend/domain"
)

// AddComment appends a comment. Comments are outside the
// version-checked field set, so the task version is untouched.
func (uc *UseCase) AddComment(ctx context.Context, taskID, text string, actor Actor) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "text", Reason: "must not be empty"})
	}
	if utf8.RuneCountInString(text) > uc.limits.MaxCommentLen {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "text", Reason: "too long"})
	}

	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}

	comment := domain.Comment{
		Author:    actor.Principal.UserID,
		Text:      text,
		CreatedAt: uc.now(),
	}
	if err := uc.tasks.AddComment(ctx, taskID, comment); err != nil {
		return nil, uc.internal("failed to persist comment", err)
	}
	current.Comments = append(current.Comments, comment)

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskCommented, current.ID, commentPayload(current, comment, actor))}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: domain.ActionTaskCommented,
		Actor:  actor.Principal.UserID,
		Target: current.ID, TargetKind: "task",
		IsResolved: true,
	})
	return &Result{Task: current, Events: events}, nil
}

// ArchiveTask soft-deletes. Only the creator or an admin may archive;
// archiving frees the title for reuse.
func (uc *UseCase) ArchiveTask(ctx context.Context, taskID string, actor Actor) (*Result, error) {
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorizeRemoval(current, actor); err != nil {
		return nil, err
	}

	before := current.Clone()
	updated := current.Clone()
	now := uc.now()
	updated.IsArchived = true
	updated.ArchivedAt = &now
	updated.ArchivedBy = actor.Principal.UserID
	updated.Version = before.Version + 1
	updated.LastModifiedAt = now
	updated.LastModifiedBy = actor.Principal.UserID

	if err := uc.tasks.Update(ctx, updated, before.Version); err != nil {
		return nil, uc.internal("failed to archive task", err)
	}

	shifts, err := uc.compactColumn(ctx, updated.Status, updated.ID)
	if err != nil {
		return nil, err
	}
	if err := uc.tasks.ShiftPositions(ctx, shifts, actor.Principal.UserID, now); err != nil {
		return nil, uc.internal("failed to renumber column", err)
	}

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskArchived, updated.ID, taskPayload(updated, actor))}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: domain.ActionTaskArchived,
		Actor:  actor.Principal.UserID,
		Target: updated.ID, TargetKind: "task",
		Before: before, After: updated.Clone(),
		IsResolved: true,
	})
	return &Result{Task: updated, Events: events}, nil
}

// DeleteTask hard-deletes a non-archived task.
func (uc *UseCase) DeleteTask(ctx context.Context, taskID string, actor Actor) (*Result, error) {
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.authorizeRemoval(current, actor); err != nil {
		return nil, err
	}

	if err := uc.tasks.Delete(ctx, taskID); err != nil {
		return nil, uc.internal("failed to delete task", err)
	}

	shifts, err := uc.compactColumn(ctx, current.Status, current.ID)
	if err != nil {
		return nil, err
	}
	if err := uc.tasks.ShiftPositions(ctx, shifts, actor.Principal.UserID, uc.now()); err != nil {
		return nil, uc.internal("failed to renumber column", err)
	}

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskDeleted, current.ID, taskPayload(current, actor))}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: domain.ActionTaskDeleted,
		Actor:  actor.Principal.UserID,
		Target: current.ID, TargetKind: "task",
		Before:     current.Clone(),
		IsResolved: true,
	})
	return &Result{Task: current, Events: events}, nil
}

func (uc *UseCase) authorizeRemoval(task *domain.Task, actor Actor) error {
	user := &domain.User{ID: actor.Principal.UserID, Role: actor.Principal.Role}
	if !user.CanManage(task) {
		return domain.ErrForbidden
	}
	return nil
}

func commentPayload(task *domain.Task, comment domain.Comment, actor Actor) interface{} {
	return struct {
		Task    *domain.Task   `json:"task"`
		Comment domain.Comment `json:"comment"`
		Actor   string         `json:"actor"`
	}{task, comment, actor.Principal.UserID}
}
