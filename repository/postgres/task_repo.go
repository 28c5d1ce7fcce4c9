package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

const taskColumns = `
	id, title, description, status, priority, assigned_to, created_by,
	due_date, tags, position, version, comments, created_at,
	last_modified_at, last_modified_by, is_archived, archived_at, archived_by`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE NOT is_archived
	  AND ($1 = '' OR status = $1)
	  AND ($2 = '' OR assigned_to = $2)
	  AND ($3 = '' OR priority = $3)
	ORDER BY status, position ASC, created_at DESC
	`
	rows, err := r.pool.Query(ctx, query,
		string(filter.Status), filter.AssignedTo, string(filter.Priority))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *taskRepository) ListColumn(ctx context.Context, status domain.Status) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE NOT is_archived AND status = $1
	ORDER BY position ASC, created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *taskRepository) FindByTitle(ctx context.Context, normalizedTitle, excludeID string) (*domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE NOT is_archived AND lower(trim(title)) = $1 AND id <> $2
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, normalizedTitle, excludeID)
	return scanTask(row)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullString(task.AssignedTo),
		task.CreatedBy,
		task.DueDate,
		marshalJSON(task.Tags),
		task.Position,
		task.Version,
		marshalJSON(task.Comments),
		task.CreatedAt,
		task.LastModifiedAt,
		task.LastModifiedBy,
		task.IsArchived,
		task.ArchivedAt,
		nullString(task.ArchivedBy),
	)
	return err
}

// Update persists the task conditionally on the version it was read
// at. A zero-row result with the task still present means a stale
// write slipped past the per-task mutex.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task, prevVersion int64) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $3,
		description = $4,
		status = $5,
		priority = $6,
		assigned_to = $7,
		due_date = $8,
		tags = $9,
		position = $10,
		version = $11,
		last_modified_at = $12,
		last_modified_by = $13,
		is_archived = $14,
		archived_at = $15,
		archived_by = $16
	WHERE id = $1 AND version = $2
	`
	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		prevVersion,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullString(task.AssignedTo),
		task.DueDate,
		marshalJSON(task.Tags),
		task.Position,
		task.Version,
		task.LastModifiedAt,
		task.LastModifiedBy,
		task.IsArchived,
		task.ArchivedAt,
		nullString(task.ArchivedBy),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, task.ID); errors.Is(err, domain.ErrTaskNotFound) {
			return domain.ErrTaskNotFound
		}
		return domain.ErrStaleWrite
	}
	return nil
}

// ShiftPositions renumbers sibling tasks in one transaction, bumping
// each affected task's version by one.
func (r *taskRepository) ShiftPositions(ctx context.Context, shifts []repository.PositionShift, actor string, at time.Time) error {
	if len(shifts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const query = `
	UPDATE tasks
	SET position = $2,
		version = version + 1,
		last_modified_at = $3,
		last_modified_by = $4
	WHERE id = $1
	`
	for _, shift := range shifts {
		if _, err := tx.Exec(ctx, query, shift.ID, shift.Position, at, actor); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// AddComment appends to the comments array without touching version.
func (r *taskRepository) AddComment(ctx context.Context, taskID string, comment domain.Comment) error {
	const query = `
	UPDATE tasks
	SET comments = COALESCE(comments, '[]'::jsonb) || $2::jsonb
	WHERE id = $1 AND NOT is_archived
	`
	payload, err := json.Marshal([]domain.Comment{comment})
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, query, taskID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// CountOpenByAssignee returns active load per assignee for the
// smart-assign scan.
func (r *taskRepository) CountOpenByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
	SELECT assigned_to, COUNT(*)
	FROM tasks
	WHERE NOT is_archived
	  AND assigned_to IS NOT NULL
	  AND status IN ('todo', 'in-progress')
	GROUP BY assigned_to
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := make(map[string]int)
	for rows.Next() {
		var assignee string
		var count int
		if err := rows.Scan(&assignee, &count); err != nil {
			return nil, err
		}
		loads[assignee] = count
	}
	return loads, rows.Err()
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		assignedTo *string
		archivedBy *string
		tags       []byte
		comments   []byte
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&assignedTo,
		&task.CreatedBy,
		&task.DueDate,
		&tags,
		&task.Position,
		&task.Version,
		&comments,
		&task.CreatedAt,
		&task.LastModifiedAt,
		&task.LastModifiedBy,
		&task.IsArchived,
		&task.ArchivedAt,
		&archivedBy,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	if assignedTo != nil {
		task.AssignedTo = *assignedTo
	}
	if archivedBy != nil {
		task.ArchivedBy = *archivedBy
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &task.Tags)
	}
	if len(comments) > 0 {
		_ = json.Unmarshal(comments, &task.Comments)
	}
	return &task, nil
}
