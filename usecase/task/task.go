package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/pkg/keylock"
	"github.com/flowboard/backend/repository"
	"github.com/flowboard/backend/usecase"
	"github.com/flowboard/backend/usecase/assign"
	"github.com/flowboard/backend/usecase/conflict"
)

// Limits bounds user-supplied task fields.
type Limits struct {
	MaxTitleLen    int
	MaxDescLen     int
	MaxTags        int
	MaxTagLen      int
	MaxCommentLen  int
	ReservedTitles []string
}

// DefaultLimits matches the documented board defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxTitleLen:    200,
		MaxDescLen:     1000,
		MaxTags:        10,
		MaxTagLen:      50,
		MaxCommentLen:  500,
		ReservedTitles: []string{"todo", "in progress", "done"},
	}
}

// Actor identifies who performs a mutation and over which connection.
// SessionID is empty for plain HTTP requests; when set, broadcasts
// exclude that session so its acknowledgement is written first.
type Actor struct {
	Principal domain.Principal
	SessionID string
	IP        string
	UserAgent string
}

// Result is the outcome of a successful mutation: the new task state
// plus the events that were fanned out, returned so the gateway can
// self-deliver them after the acknowledgement.
type Result struct {
	Task     *domain.Task
	Events   []domain.Event
	Assignee *domain.User
}

// UseCase is the authoritative task service. All mutations of one task
// are serialised through a per-task mutex so the read-validate-write
// sequence observes a stable version.
type UseCase struct {
	tasks     repository.TaskRepository
	engine    *assign.Engine
	conflicts *conflict.Controller
	recorder  usecase.Recorder
	publisher usecase.Publisher
	locks     *keylock.KeyLock
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
}

func New(
	tasks repository.TaskRepository,
	engine *assign.Engine,
	conflicts *conflict.Controller,
	recorder usecase.Recorder,
	publisher usecase.Publisher,
	limits Limits,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = usecase.NopRecorder{}
	}
	if publisher == nil {
		publisher = usecase.NopPublisher{}
	}
	if limits.MaxTitleLen <= 0 {
		limits = DefaultLimits()
	}
	return &UseCase{
		tasks:     tasks,
		engine:    engine,
		conflicts: conflicts,
		recorder:  recorder,
		publisher: publisher,
		locks:     keylock.New(),
		limits:    limits,
		logger:    logger,
		now:       time.Now,
	}
}

// ListBoard returns the non-archived tasks grouped by column, each
// column ordered by (position asc, created_at desc).
func (uc *UseCase) ListBoard(ctx context.Context, filter repository.TaskFilter) (*domain.Board, error) {
	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	board := &domain.Board{
		Todo:       []domain.Task{},
		InProgress: []domain.Task{},
		Done:       []domain.Task{},
	}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusInProgress:
			board.InProgress = append(board.InProgress, t)
		case domain.StatusDone:
			board.Done = append(board.Done, t)
		default:
			board.Todo = append(board.Todo, t)
		}
	}
	return board, nil
}

// GetTask returns the task; archived tasks are invisible.
func (uc *UseCase) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsArchived {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// CreateInput carries the fields a client supplies at creation.
type CreateInput struct {
	Title       string
	Description string
	Status      domain.Status
	Priority    domain.Priority
	AssignedTo  string
	DueDate     *time.Time
	Tags        []string
}

// CreateTask validates the input, appends the task to the end of its
// column and emits task.created.
func (uc *UseCase) CreateTask(ctx context.Context, input CreateInput, actor Actor) (*Result, error) {
	if input.Status == "" {
		input.Status = domain.StatusTodo
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}

	now := uc.now()
	task := &domain.Task{
		ID:             uuid.NewString(),
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		AssignedTo:     input.AssignedTo,
		CreatedBy:      actor.Principal.UserID,
		DueDate:        input.DueDate,
		Tags:           input.Tags,
		Version:        1,
		CreatedAt:      now,
		LastModifiedAt: now,
		LastModifiedBy: actor.Principal.UserID,
	}

	if err := uc.validateTask(ctx, task, true); err != nil {
		return nil, err
	}
	if task.DueDate != nil && !task.DueDate.After(now) {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "due_date", Reason: "must be in the future"})
	}
	if err := uc.engine.ValidateAssignee(ctx, task.AssignedTo); err != nil {
		return nil, err
	}

	column, err := uc.tasks.ListColumn(ctx, task.Status)
	if err != nil {
		return nil, uc.internal("failed to read column", err)
	}
	task.Position = nextPosition(column)

	if err := uc.tasks.Create(ctx, task); err != nil {
		return nil, uc.internal("failed to persist task", err)
	}

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskCreated, task.ID, taskPayload(task, actor))}
	uc.dispatch(ctx, events, actor, &domain.Activity{
		Action: domain.ActionTaskCreated,
		Actor:  actor.Principal.UserID,
		Target: task.ID, TargetKind: "task",
		After:      task.Clone(),
		IsResolved: true,
	})
	return &Result{Task: task, Events: events}, nil
}

// UpdateTask applies a patch under the per-task mutex with an
// optional optimistic version check. A status change relocates the
// task to the end of the target column.
func (uc *UseCase) UpdateTask(ctx context.Context, taskID string, patch domain.TaskPatch, knownVersion *int64, actor Actor) (*Result, error) {
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)
	return uc.updateLocked(ctx, taskID, patch, knownVersion, actor, nil)
}

// updateLocked is the shared update path; the caller must hold the
// task lock. resolved, when set, tags the emitted activity with the
// conflict that produced this write.
func (uc *UseCase) updateLocked(ctx context.Context, taskID string, patch domain.TaskPatch, knownVersion *int64, actor Actor, resolved *domain.Conflict) (*Result, error) {
	current, err := uc.loadMutable(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := uc.checkVersion(current, knownVersion, patch, actor); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return &Result{Task: current}, nil
	}

	before := current.Clone()
	updated := current.Clone()
	applyPatch(updated, patch)

	if err := uc.validateTask(ctx, updated, patch.Title != nil); err != nil {
		return nil, err
	}
	if patch.AssignedTo != nil {
		if err := uc.engine.ValidateAssignee(ctx, updated.AssignedTo); err != nil {
			return nil, err
		}
	}
	if patch.DueDate != nil && !patch.DueDate.After(uc.now()) {
		return nil, domain.NewValidationError(domain.ValidationIssue{Field: "due_date", Reason: "must be in the future"})
	}

	var shifts []repository.PositionShift
	if updated.Status != before.Status {
		shifts, err = uc.relocateAcrossColumns(ctx, before, updated)
		if err != nil {
			return nil, err
		}
	}

	updated.Version = before.Version + 1
	updated.LastModifiedAt = uc.now()
	updated.LastModifiedBy = actor.Principal.UserID

	if err := uc.tasks.Update(ctx, updated, before.Version); err != nil {
		return nil, uc.internal("failed to persist update", err)
	}
	if err := uc.tasks.ShiftPositions(ctx, shifts, actor.Principal.UserID, updated.LastModifiedAt); err != nil {
		return nil, uc.internal("failed to renumber column", err)
	}

	events := []domain.Event{domain.NewTaskEvent(domain.EventTaskUpdated, updated.ID, updatePayload(before, updated, actor))}
	activityRecord := &domain.Activity{
		Action: domain.ActionTaskUpdated,
		Actor:  actor.Principal.UserID,
		Target: updated.ID, TargetKind: "task",
		Before: before, After: updated.Clone(),
		IsResolved: true,
	}
	if resolved != nil {
		activityRecord.ConflictID = resolved.ConflictID
	}
	uc.dispatch(ctx, events, actor, activityRecord)
	return &Result{Task: updated, Events: events}, nil
}

// loadMutable fetches a task that may still be mutated: it must exist
// and not be archived.
func (uc *UseCase) loadMutable(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsArchived {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// checkVersion enforces the optimistic concurrency contract. A stale
// knownVersion registers a conflict carrying the losing patch and
// fails with the descriptor attached.
func (uc *UseCase) checkVersion(current *domain.Task, knownVersion *int64, patch domain.TaskPatch, actor Actor) error {
	if knownVersion == nil {
		return nil
	}
	if *knownVersion == current.Version {
		return nil
	}
	if *knownVersion > current.Version {
		return domain.NewValidationError(domain.ValidationIssue{Field: "known_version", Reason: "ahead of server version"})
	}

	descriptor := uc.conflicts.Detect(current, *knownVersion, patch, actor.Principal.UserID)
	uc.recorder.Record(context.WithoutCancel(context.Background()), &domain.Activity{
		Action: domain.ActionConflictDetected,
		Actor:  actor.Principal.UserID,
		Target: current.ID, TargetKind: "task",
		ConflictID: descriptor.ConflictID,
		IsResolved: false,
	})
	uc.publisher.Publish(domain.Event{
		Kind:    domain.EventConflictDetected,
		Rooms:   []string{domain.RoomTask(current.ID)},
		Payload: descriptor,
	}, actor.SessionID)

	return domain.NewErrorWithDetails(domain.ErrCodeConflict, "task was modified by someone else", descriptor)
}

// dispatch publishes the mutation's events before the caller returns
// its reply, then records the activity fire-and-forget.
func (uc *UseCase) dispatch(ctx context.Context, events []domain.Event, actor Actor, record *domain.Activity) {
	for _, event := range events {
		uc.publisher.Publish(event, actor.SessionID)
	}
	if record != nil {
		record.IP = actor.IP
		record.UserAgent = actor.UserAgent
		uc.recorder.Record(context.WithoutCancel(ctx), record)
	}
}

func (uc *UseCase) internal(message string, err error) error {
	if domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return err
	}
	uc.logger.Error(message, zap.Error(err))
	return domain.WrapError(domain.ErrCodeInternal, message, err)
}

func applyPatch(task *domain.Task, patch domain.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		task.AssignedTo = *patch.AssignedTo
	}
	if patch.DueDate != nil {
		due := *patch.DueDate
		task.DueDate = &due
	}
	if patch.Tags != nil {
		task.Tags = append([]string(nil), (*patch.Tags)...)
	}
}

func nextPosition(column []domain.Task) int {
	next := 0
	for _, t := range column {
		if t.Position >= next {
			next = t.Position + 1
		}
	}
	return next
}

func taskPayload(task *domain.Task, actor Actor) interface{} {
	return struct {
		Task  *domain.Task `json:"task"`
		Actor string       `json:"actor"`
	}{task, actor.Principal.UserID}
}

func updatePayload(before, after *domain.Task, actor Actor) interface{} {
	return struct {
		Task   *domain.Task `json:"task"`
		Before *domain.Task `json:"before"`
		Actor  string       `json:"actor"`
	}{after, before, actor.Principal.UserID}
}
