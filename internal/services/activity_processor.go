package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/internal/infrastructure/outbox"
	"github.com/flowboard/backend/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ConflictSweeper abstracts the in-memory conflict registry so the
// processor can expire descriptors nobody resolved.
type ConflictSweeper interface {
	Sweep(olderThan time.Time) int
}

// ProcessorConfig controls the drain cadence and the retention jobs.
type ProcessorConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	PruneSchedule string
	RetentionDays int
	ConflictTTL   time.Duration
}

// ActivityProcessor owns the background jobs around the activity log:
// draining spooled records into the store, pruning aged low-severity
// rows, and sweeping abandoned conflict descriptors. It also serves
// as the recorder's spool target when the store is unreachable.
type ActivityProcessor struct {
	store   *outbox.Store
	monitor ConnectionHealth
	repo    repository.ActivityRepository
	sweeper ConflictSweeper
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
	pruneFn func(ctx context.Context, olderThan time.Time) (int64, error)
}

func NewActivityProcessor(
	store *outbox.Store,
	monitor ConnectionHealth,
	repo repository.ActivityRepository,
	pruneFn func(ctx context.Context, olderThan time.Time) (int64, error),
	logger *zap.Logger,
	cfg ProcessorConfig,
) *ActivityProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = "@daily"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.ConflictTTL <= 0 {
		cfg.ConflictTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ap := &ActivityProcessor{
		store:   store,
		monitor: monitor,
		repo:    repo,
		pruneFn: pruneFn,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ap.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := ap.Drain(ctx); err != nil {
			ap.logger.Error("outbox drain failed", zap.Error(err))
		}
		if ap.sweeper != nil {
			if swept := ap.sweeper.Sweep(time.Now().Add(-cfg.ConflictTTL)); swept > 0 {
				ap.logger.Info("swept stale conflicts", zap.Int("count", swept))
			}
		}
	})
	_, _ = ap.cron.AddFunc(cfg.PruneSchedule, ap.prune)

	return ap
}

// SetSweeper wires the conflict registry. Must be called before Start.
func (ap *ActivityProcessor) SetSweeper(sweeper ConflictSweeper) {
	ap.sweeper = sweeper
}

// Start launches the cron scheduler.
func (ap *ActivityProcessor) Start() {
	if ap == nil || ap.cron == nil {
		return
	}
	ap.cron.Start()
	ap.logger.Info("activity processor started")
}

// Stop gracefully stops the scheduler.
func (ap *ActivityProcessor) Stop(ctx context.Context) {
	if ap == nil || ap.cron == nil {
		return
	}
	stopCtx := ap.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ap.logger.Info("activity processor stopped")
}

// Spool persists a record the store rejected. Implements the
// recorder's fallback port.
func (ap *ActivityProcessor) Spool(activity *domain.Activity) error {
	if ap == nil || ap.store == nil {
		return fmt.Errorf("outbox not configured")
	}
	payload, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return ap.store.Enqueue(outbox.Item{
		ID:      activity.ID,
		Action:  activity.Action,
		Payload: payload,
	})
}

// Drain replays spooled records into the activity store.
func (ap *ActivityProcessor) Drain(ctx context.Context) error {
	if ap == nil || ap.store == nil {
		return nil
	}
	if ap.monitor != nil && !ap.monitor.IsOnline() {
		ap.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	items, err := ap.store.GetBatch(ap.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ap.replay(ctx, item); err != nil {
			ap.logger.Error("failed to replay outbox item",
				zap.String("item_id", item.ID),
				zap.String("action", item.Action),
				zap.Error(err))

			item.Retries++
			if item.Retries >= ap.cfg.MaxRetries {
				ap.logger.Warn("dropping outbox item (max retries reached)", zap.String("item_id", item.ID))
				_ = ap.store.Remove(item)
				continue
			}

			if err := ap.store.Remove(item); err != nil {
				ap.logger.Warn("failed to remove outbox item", zap.Error(err))
			}
			if err := ap.store.Requeue(item); err != nil {
				ap.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}

		if err := ap.store.Remove(item); err != nil {
			ap.logger.Warn("failed to purge replayed outbox item", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of spooled records.
func (ap *ActivityProcessor) Size() int {
	if ap == nil || ap.store == nil {
		return 0
	}
	size, err := ap.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (ap *ActivityProcessor) replay(ctx context.Context, item outbox.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var activity domain.Activity
	if err := json.Unmarshal(item.Payload, &activity); err != nil {
		return fmt.Errorf("decode activity: %w", err)
	}
	return ap.repo.Append(ctx, &activity)
}

func (ap *ActivityProcessor) prune() {
	if ap.pruneFn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	olderThan := time.Now().AddDate(0, 0, -ap.cfg.RetentionDays)
	pruned, err := ap.pruneFn(ctx, olderThan)
	if err != nil {
		ap.logger.Error("activity prune failed", zap.Error(err))
		return
	}
	if pruned > 0 {
		ap.logger.Info("pruned aged activity", zap.Int64("count", pruned))
	}
}
