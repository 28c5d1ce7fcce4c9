package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns the Postgres append-only activity log.
func NewActivityRepository(pool *pgxpool.Pool) repository.ActivityRepository {
	return &activityRepository{pool: pool}
}

// Append is idempotent on the record id so outbox redelivery never
// duplicates rows.
func (r *activityRepository) Append(ctx context.Context, activity *domain.Activity) error {
	if activity == nil {
		return domain.ErrInvalidPayload
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}

	const query = `
	INSERT INTO activities (
		id, action, actor, target, target_kind, description,
		before_state, after_state, category, severity,
		conflict_id, is_resolved, created_at, ip, user_agent
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		activity.ID,
		activity.Action,
		activity.Actor,
		nullString(activity.Target),
		nullString(activity.TargetKind),
		activity.Description,
		marshalTask(activity.Before),
		marshalTask(activity.After),
		string(activity.Category),
		string(activity.Severity),
		nullString(activity.ConflictID),
		activity.IsResolved,
		activity.CreatedAt,
		nullString(activity.IP),
		nullString(activity.UserAgent),
	)
	return err
}

func (r *activityRepository) Recent(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
	SELECT id, action, actor, target, target_kind, description,
		before_state, after_state, category, severity,
		conflict_id, is_resolved, created_at, ip, user_agent
	FROM activities
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Activity
	for rows.Next() {
		record, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// MarkResolved flips the conflict_detected record for the given
// conflict and stamps the resolution label into its description.
func (r *activityRepository) MarkResolved(ctx context.Context, conflictID, resolution string) error {
	const query = `
	UPDATE activities
	SET is_resolved = TRUE,
		description = description || ' (resolved: ' || $2 || ')'
	WHERE conflict_id = $1 AND action = $3 AND NOT is_resolved
	`
	_, err := r.pool.Exec(ctx, query, conflictID, resolution, domain.ActionConflictDetected)
	return err
}

func (r *activityRepository) Prune(ctx context.Context, olderThan time.Time, severities []domain.ActivitySeverity) (int64, error) {
	if len(severities) == 0 {
		severities = []domain.ActivitySeverity{domain.SeverityLow, domain.SeverityMedium}
	}
	levels := make([]string, 0, len(severities))
	for _, s := range severities {
		levels = append(levels, string(s))
	}

	const query = `DELETE FROM activities WHERE created_at < $1 AND severity = ANY($2)`
	tag, err := r.pool.Exec(ctx, query, olderThan, levels)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanActivity(rows pgx.Rows) (*domain.Activity, error) {
	var record domain.Activity
	var (
		target     *string
		targetKind *string
		before     []byte
		after      []byte
		conflictID *string
		ip         *string
		userAgent  *string
	)

	if err := rows.Scan(
		&record.ID,
		&record.Action,
		&record.Actor,
		&target,
		&targetKind,
		&record.Description,
		&before,
		&after,
		&record.Category,
		&record.Severity,
		&conflictID,
		&record.IsResolved,
		&record.CreatedAt,
		&ip,
		&userAgent,
	); err != nil {
		return nil, err
	}

	if target != nil {
		record.Target = *target
	}
	if targetKind != nil {
		record.TargetKind = *targetKind
	}
	if conflictID != nil {
		record.ConflictID = *conflictID
	}
	if ip != nil {
		record.IP = *ip
	}
	if userAgent != nil {
		record.UserAgent = *userAgent
	}
	if len(before) > 0 {
		_ = json.Unmarshal(before, &record.Before)
	}
	if len(after) > 0 {
		_ = json.Unmarshal(after, &record.After)
	}
	return &record, nil
}

func marshalTask(t *domain.Task) []byte {
	if t == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	return b
}
