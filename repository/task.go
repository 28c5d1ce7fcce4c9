package repository

import (
	"context"
	"time"

	"github.com/flowboard/backend/domain"
)

// TaskFilter narrows List results. Zero values mean "no constraint".
type TaskFilter struct {
	Status     domain.Status
	AssignedTo string
	Priority   domain.Priority
}

// PositionShift renumbers one sibling task during a move. Applying a
// shift bumps that task's version by one.
type PositionShift struct {
	ID       string
	Position int
}

// TaskRepository is the persistence contract for board tasks. Update
// is conditional on the previous version so the store rejects writes
// that lost the per-task serialisation race.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	ListColumn(ctx context.Context, status domain.Status) ([]domain.Task, error)
	FindByTitle(ctx context.Context, normalizedTitle, excludeID string) (*domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task, prevVersion int64) error
	ShiftPositions(ctx context.Context, shifts []PositionShift, actor string, at time.Time) error
	AddComment(ctx context.Context, taskID string, comment domain.Comment) error
	Delete(ctx context.Context, id string) error
	CountOpenByAssignee(ctx context.Context) (map[string]int, error)
}
