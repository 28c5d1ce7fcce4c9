package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
	"github.com/flowboard/backend/usecase"
)

// Spooler persists activities that could not reach the log sink. The
// outbox processor implements it and retries delivery on a schedule.
type Spooler interface {
	Spool(activity *domain.Activity) error
}

// Recorder is the activity recorder: one immutable record per
// successful mutation or auth event. Persistence is fire-and-forget;
// the last ringSize records are kept in memory for the activity room
// and the recent query.
type Recorder struct {
	repo      repository.ActivityRepository
	spooler   Spooler
	publisher usecase.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	ring     []domain.Activity
	ringSize int
}

func NewRecorder(repo repository.ActivityRepository, spooler Spooler, publisher usecase.Publisher, ringSize int, logger *zap.Logger) *Recorder {
	if ringSize <= 0 {
		ringSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = usecase.NopPublisher{}
	}
	return &Recorder{
		repo:      repo,
		spooler:   spooler,
		publisher: publisher,
		ringSize:  ringSize,
		logger:    logger,
	}
}

// Record finalises the activity, feeds the in-memory window and the
// activity room, and hands it to the sink. Sink failures are logged
// and spooled, never propagated.
func (r *Recorder) Record(ctx context.Context, a *domain.Activity) {
	if r == nil || a == nil {
		return
	}
	finalize(a)

	r.mu.Lock()
	r.ring = append(r.ring, *a)
	if len(r.ring) > r.ringSize {
		r.ring = r.ring[len(r.ring)-r.ringSize:]
	}
	r.mu.Unlock()

	r.publisher.Publish(domain.Event{
		Kind:    domain.EventActivityNew,
		Rooms:   []string{domain.RoomActivity},
		Payload: a,
	}, "")

	if r.repo == nil {
		return
	}
	if err := r.repo.Append(ctx, a); err != nil {
		r.logger.Error("activity sink write failed",
			zap.String("action", a.Action),
			zap.String("activity_id", a.ID),
			zap.Error(err))
		if r.spooler != nil {
			if err := r.spooler.Spool(a); err != nil {
				r.logger.Error("activity spool failed", zap.String("activity_id", a.ID), zap.Error(err))
			}
		}
	}
}

// MarkResolved stamps the detection record of a conflict as resolved.
func (r *Recorder) MarkResolved(ctx context.Context, conflictID, resolution string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	for i := range r.ring {
		if r.ring[i].ConflictID == conflictID && r.ring[i].Action == domain.ActionConflictDetected {
			r.ring[i].IsResolved = true
		}
	}
	r.mu.Unlock()

	if r.repo == nil {
		return
	}
	if err := r.repo.MarkResolved(ctx, conflictID, resolution); err != nil {
		r.logger.Error("failed to mark conflict activity resolved",
			zap.String("conflict_id", conflictID), zap.Error(err))
	}
}

// Recent returns the newest records, newest first. Requests within the
// in-memory window never touch the sink.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = r.ringSize
	}

	r.mu.Lock()
	window := make([]domain.Activity, len(r.ring))
	copy(window, r.ring)
	r.mu.Unlock()

	if limit <= len(window) || r.repo == nil {
		if limit > len(window) {
			limit = len(window)
		}
		out := make([]domain.Activity, 0, limit)
		for i := len(window) - 1; i >= len(window)-limit; i-- {
			out = append(out, window[i])
		}
		return out, nil
	}
	return r.repo.Recent(ctx, limit)
}

// Prune removes low and medium severity records older than the cutoff.
func (r *Recorder) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	if r.repo == nil {
		return 0, nil
	}
	return r.repo.Prune(ctx, olderThan, []domain.ActivitySeverity{domain.SeverityLow, domain.SeverityMedium})
}

func finalize(a *domain.Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	meta, ok := actionTable[a.Action]
	if !ok {
		meta = actionMeta{
			template: "%s performed " + a.Action,
			category: domain.CategorySystem,
			severity: domain.SeverityLow,
		}
	}
	if a.Category == "" {
		a.Category = meta.category
	}
	if a.Severity == "" {
		a.Severity = meta.severity
	}
	if a.Description == "" {
		a.Description = renderDescription(meta.template, a)
	}
}

func renderDescription(template string, a *domain.Activity) string {
	if a.Target != "" {
		return fmt.Sprintf(template, a.Actor, a.Target)
	}
	return fmt.Sprintf(template, a.Actor)
}
