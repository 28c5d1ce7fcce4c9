package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
	"github.com/flowboard/backend/usecase/assign"
	"github.com/flowboard/backend/usecase/conflict"
)

// memStore is an in-memory TaskRepository with the same ordering and
// version semantics as the Postgres implementation.
type memStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*domain.Task)}
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *memStore) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for _, t := range s.tasks {
		if t.IsArchived {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) ListColumn(ctx context.Context, status domain.Status) ([]domain.Task, error) {
	return s.List(ctx, repository.TaskFilter{Status: status})
}

func (s *memStore) FindByTitle(_ context.Context, normalizedTitle, excludeID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.IsArchived || t.ID == excludeID {
			continue
		}
		if domain.NormalizedTitle(t.Title) == normalizedTitle {
			return t.Clone(), nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (s *memStore) Create(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *memStore) Update(_ context.Context, task *domain.Task, prevVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if stored.Version != prevVersion {
		return domain.ErrStaleWrite
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *memStore) ShiftPositions(_ context.Context, shifts []repository.PositionShift, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shift := range shifts {
		t, ok := s.tasks[shift.ID]
		if !ok {
			return domain.ErrTaskNotFound
		}
		t.Position = shift.Position
		t.Version++
		t.LastModifiedAt = at
		t.LastModifiedBy = actor
	}
	return nil
}

func (s *memStore) AddComment(_ context.Context, taskID string, comment domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.Comments = append(t.Comments, comment)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memStore) CountOpenByAssignee(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loads := make(map[string]int)
	for _, t := range s.tasks {
		if t.IsOpen() && t.AssignedTo != "" {
			loads[t.AssignedTo]++
		}
	}
	return loads, nil
}

// memUsers is an in-memory UserRepository.
type memUsers struct {
	users map[string]*domain.User
}

func newMemUsers(users ...domain.User) *memUsers {
	m := &memUsers{users: make(map[string]*domain.User)}
	for i := range users {
		m.users[users[i].ID] = &users[i]
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) List(_ context.Context, activeOnly bool) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		if activeOnly && !u.IsActive {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// capturePublisher records everything published.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	except []string
}

func (p *capturePublisher) Publish(event domain.Event, exceptSessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.except = append(p.except, exceptSessionID)
}

func (p *capturePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

// captureRecorder records activities and resolution marks.
type captureRecorder struct {
	mu         sync.Mutex
	activities []domain.Activity
	resolved   map[string]string
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{resolved: make(map[string]string)}
}

func (r *captureRecorder) Record(_ context.Context, a *domain.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, *a)
}

func (r *captureRecorder) MarkResolved(_ context.Context, conflictID, resolution string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[conflictID] = resolution
}

func (r *captureRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.activities))
	for i, a := range r.activities {
		out[i] = a.Action
	}
	return out
}

type fixture struct {
	uc        *UseCase
	store     *memStore
	users     *memUsers
	conflicts *conflict.Controller
	publisher *capturePublisher
	recorder  *captureRecorder
}

func newFixture(t *testing.T, users ...domain.User) *fixture {
	t.Helper()
	if len(users) == 0 {
		users = []domain.User{
			{ID: "alice", DisplayName: "Alice", Role: domain.RoleMember, IsActive: true},
			{ID: "bob", DisplayName: "Bob", Role: domain.RoleMember, IsActive: true},
		}
	}
	store := newMemStore()
	userRepo := newMemUsers(users...)
	ctrl := conflict.NewController(zap.NewNop())
	publisher := &capturePublisher{}
	recorder := newCaptureRecorder()
	engine := assign.New(userRepo, store, zap.NewNop())
	uc := New(store, engine, ctrl, recorder, publisher, DefaultLimits(), zap.NewNop())
	return &fixture{
		uc:        uc,
		store:     store,
		users:     userRepo,
		conflicts: ctrl,
		publisher: publisher,
		recorder:  recorder,
	}
}

func actor(userID string) Actor {
	return Actor{Principal: domain.Principal{UserID: userID, Role: domain.RoleMember}}
}

func adminActor(userID string) Actor {
	return Actor{Principal: domain.Principal{UserID: userID, Role: domain.RoleAdmin}}
}

func (f *fixture) mustCreate(t *testing.T, title string, status domain.Status) *domain.Task {
	t.Helper()
	res, err := f.uc.CreateTask(context.Background(), CreateInput{Title: title, Status: status}, actor("alice"))
	require.NoError(t, err)
	return res.Task
}

func ptr[T any](v T) *T { return &v }

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)

	res, err := f.uc.CreateTask(context.Background(), CreateInput{Title: "Ship the release"}, actor("alice"))
	require.NoError(t, err)

	task := res.Task
	assert.Equal(t, domain.StatusTodo, task.Status)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
	assert.Equal(t, int64(1), task.Version)
	assert.Equal(t, 0, task.Position)
	assert.Equal(t, "alice", task.CreatedBy)
	assert.Equal(t, []string{domain.EventTaskCreated}, f.publisher.kinds())
	assert.Equal(t, []string{domain.ActionTaskCreated}, f.recorder.actions())
}

func TestCreateTaskAppendsToColumnEnd(t *testing.T) {
	f := newFixture(t)

	first := f.mustCreate(t, "first", domain.StatusTodo)
	second := f.mustCreate(t, "second", domain.StatusTodo)
	other := f.mustCreate(t, "elsewhere", domain.StatusDone)

	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, 0, other.Position)
}

func TestCreateTaskTitleRules(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "Existing Task", domain.StatusTodo)

	tests := []struct {
		name  string
		title string
		code  domain.ErrorCode
	}{
		{"empty", "   ", domain.ErrCodeInvalid},
		{"too long", strings.Repeat("x", 201), domain.ErrCodeInvalid},
		{"reserved column name", "In Progress", domain.ErrCodeReservedTitle},
		{"duplicate ignoring case", "  existing task ", domain.ErrCodeDuplicateTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.CreateTask(context.Background(), CreateInput{Title: tt.title}, actor("alice"))
			assert.True(t, domain.IsDomainError(err, tt.code), "got %v", err)
		})
	}

	// Exactly at the limit is fine.
	_, err := f.uc.CreateTask(context.Background(), CreateInput{Title: strings.Repeat("x", 200)}, actor("alice"))
	assert.NoError(t, err)
}

func TestCreateTaskFieldValidation(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)

	_, err := f.uc.CreateTask(context.Background(), CreateInput{Title: "due in the past", DueDate: &past}, actor("alice"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	tags := make([]string, 11)
	for i := range tags {
		tags[i] = "tag"
	}
	_, err = f.uc.CreateTask(context.Background(), CreateInput{Title: "too many tags", Tags: tags}, actor("alice"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.uc.CreateTask(context.Background(), CreateInput{Title: "bad assignee", AssignedTo: "ghost"}, actor("alice"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidAssignee))
}

func TestUpdateTaskBumpsVersion(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "original", domain.StatusTodo)

	res, err := f.uc.UpdateTask(context.Background(),
		task.ID,
		domain.TaskPatch{Title: ptr("renamed"), Priority: ptr(domain.PriorityHigh)},
		ptr(int64(1)),
		actor("bob"),
	)
	require.NoError(t, err)

	assert.Equal(t, "renamed", res.Task.Title)
	assert.Equal(t, domain.PriorityHigh, res.Task.Priority)
	assert.Equal(t, int64(2), res.Task.Version)
	assert.Equal(t, "bob", res.Task.LastModifiedBy)

	stored, err := f.store.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestUpdateTaskNilVersionSkipsCheck(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "original", domain.StatusTodo)

	res, err := f.uc.UpdateTask(context.Background(), task.ID, domain.TaskPatch{Title: ptr("renamed")}, nil, actor("alice"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Task.Version)
}

func TestUpdateTaskEmptyPatchIsNoop(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "original", domain.StatusTodo)

	res, err := f.uc.UpdateTask(context.Background(), task.ID, domain.TaskPatch{}, ptr(int64(1)), actor("alice"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Task.Version)
	assert.Equal(t, []string{domain.EventTaskCreated}, f.publisher.kinds())
}

func TestUpdateTaskStaleVersionRaisesConflict(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "contested", domain.StatusTodo)

	_, err := f.uc.UpdateTask(context.Background(), task.ID, domain.TaskPatch{Title: ptr("bob wins")}, ptr(int64(1)), actor("bob"))
	require.NoError(t, err)

	_, err = f.uc.UpdateTask(context.Background(), task.ID, domain.TaskPatch{Title: ptr("alice loses")}, ptr(int64(1)), actor("alice"))
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))

	descriptor, ok := domain.DetailsOf(err).(*domain.ConflictDescriptor)
	require.True(t, ok, "conflict error carries the descriptor")
	assert.Equal(t, task.ID, descriptor.TaskID)
	assert.Equal(t, int64(1), descriptor.ClientVersion)
	assert.Equal(t, int64(2), descriptor.ServerVersion)
	assert.Equal(t, "bob", descriptor.LastModifiedBy)
	assert.Equal(t, "bob wins", descriptor.ServerTask.Title)

	// The losing write must not have touched the task.
	stored, err := f.store.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob wins", stored.Title)
	assert.Equal(t, int64(2), stored.Version)

	assert.Contains(t, f.publisher.kinds(), domain.EventConflictDetected)
	assert.Contains(t, f.recorder.actions(), domain.ActionConflictDetected)
}

func TestUpdateTaskVersionAheadIsInvalid(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "original", domain.StatusTodo)

	_, err := f.uc.UpdateTask(context.Background(), task.ID, domain.TaskPatch{Title: ptr("future")}, ptr(int64(5)), actor("alice"))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.NotContains(t, f.publisher.kinds(), domain.EventConflictDetected)
}

func TestUpdateTaskStatusChangeRelocatesToColumnEnd(t *testing.T) {
	f := newFixture(t)
	moved := f.mustCreate(t, "moved", domain.StatusTodo)
	below := f.mustCreate(t, "below", domain.StatusTodo)
	f.mustCreate(t, "done already", domain.StatusDone)

	res, err := f.uc.UpdateTask(context.Background(),
		moved.ID,
		domain.TaskPatch{Status: ptr(domain.StatusDone)},
		ptr(int64(1)),
		actor("alice"),
	)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, res.Task.Status)
	assert.Equal(t, 1, res.Task.Position)

	// The source column compacted behind it.
	stored, err := f.store.GetByID(context.Background(), below.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Position)
}

func TestGetTaskArchivedIsInvisible(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "short lived", domain.StatusTodo)

	_, err := f.uc.ArchiveTask(context.Background(), task.ID, actor("alice"))
	require.NoError(t, err)

	_, err = f.uc.GetTask(context.Background(), task.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestListBoardGroupsByColumn(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "one", domain.StatusTodo)
	f.mustCreate(t, "two", domain.StatusInProgress)
	f.mustCreate(t, "three", domain.StatusDone)
	archived := f.mustCreate(t, "four", domain.StatusDone)
	_, err := f.uc.ArchiveTask(context.Background(), archived.ID, actor("alice"))
	require.NoError(t, err)

	board, err := f.uc.ListBoard(context.Background(), repository.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, board.Todo, 1)
	assert.Len(t, board.InProgress, 1)
	assert.Len(t, board.Done, 1)
}
