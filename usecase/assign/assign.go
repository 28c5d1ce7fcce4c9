package assign

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

// Engine implements the smart-assign policy: pick uniformly at random
// among the active users carrying the fewest open (todo/in-progress,
// non-archived) tasks. The choice is advisory; the caller still runs
// it through the version-checked assign path.
type Engine struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	logger *zap.Logger
	randN  func(n int) int
}

func New(users repository.UserRepository, tasks repository.TaskRepository, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		users:  users,
		tasks:  tasks,
		logger: logger,
		randN:  rand.IntN,
	}
}

// PickAssignee returns the fairest assignee or NO_ELIGIBLE_USER when
// the directory holds no active user.
func (e *Engine) PickAssignee(ctx context.Context) (*domain.User, error) {
	candidates, err := e.users.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoEligibleUser
	}

	loads, err := e.tasks.CountOpenByAssignee(ctx)
	if err != nil {
		return nil, err
	}

	minLoad := -1
	var leastLoaded []domain.User
	for _, user := range candidates {
		load := loads[user.ID]
		switch {
		case minLoad < 0 || load < minLoad:
			minLoad = load
			leastLoaded = leastLoaded[:0]
			leastLoaded = append(leastLoaded, user)
		case load == minLoad:
			leastLoaded = append(leastLoaded, user)
		}
	}

	chosen := leastLoaded[e.randN(len(leastLoaded))]
	e.logger.Debug("smart-assign pick",
		zap.String("user_id", chosen.ID),
		zap.Int("load", minLoad),
		zap.Int("tied", len(leastLoaded)))
	return &chosen, nil
}

// ValidateAssignee checks that an explicit assignee references an
// active user. The empty id means "unassign" and is always valid.
func (e *Engine) ValidateAssignee(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return domain.NewError(domain.ErrCodeInvalidAssignee, "assignee does not exist")
		}
		return err
	}
	if !user.IsActive {
		return domain.NewError(domain.ErrCodeInvalidAssignee, "assignee is not active")
	}
	return nil
}
