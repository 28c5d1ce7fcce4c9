package repository

import (
	"context"
	"time"

	"github.com/flowboard/backend/domain"
)

// ActivityRepository is the append-only activity log sink.
type ActivityRepository interface {
	Append(ctx context.Context, activity *domain.Activity) error
	Recent(ctx context.Context, limit int) ([]domain.Activity, error)
	MarkResolved(ctx context.Context, conflictID, resolution string) error
	Prune(ctx context.Context, olderThan time.Time, severities []domain.ActivitySeverity) (int64, error)
}
