package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

type stubUsers struct {
	users []domain.User
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	for i := range s.users {
		if s.users[i].ID == id {
			cp := s.users[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsers) List(_ context.Context, activeOnly bool) ([]domain.User, error) {
	var out []domain.User
	for _, u := range s.users {
		if activeOnly && !u.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// stubLoads only implements the load scan; the engine touches nothing
// else on the task repository.
type stubLoads struct {
	repository.TaskRepository
	loads map[string]int
}

func (s *stubLoads) CountOpenByAssignee(context.Context) (map[string]int, error) {
	return s.loads, nil
}

func newEngine(users []domain.User, loads map[string]int) *Engine {
	return New(&stubUsers{users: users}, &stubLoads{loads: loads}, nil)
}

func active(id string) domain.User {
	return domain.User{ID: id, Role: domain.RoleMember, IsActive: true}
}

func TestPickAssigneeLeastLoaded(t *testing.T) {
	engine := newEngine(
		[]domain.User{active("alice"), active("bob"), active("carol")},
		map[string]int{"alice": 3, "bob": 1, "carol": 2},
	)

	chosen, err := engine.PickAssignee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob", chosen.ID)
}

func TestPickAssigneeZeroLoadBeatsAny(t *testing.T) {
	// carol has no open tasks at all, so she is the unique minimum.
	engine := newEngine(
		[]domain.User{active("alice"), active("bob"), active("carol")},
		map[string]int{"alice": 1, "bob": 1},
	)

	chosen, err := engine.PickAssignee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "carol", chosen.ID)
}

func TestPickAssigneeSkipsInactive(t *testing.T) {
	inactive := domain.User{ID: "idle", Role: domain.RoleMember, IsActive: false}
	engine := newEngine(
		[]domain.User{active("alice"), inactive},
		map[string]int{"alice": 9},
	)

	chosen, err := engine.PickAssignee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", chosen.ID)
}

func TestPickAssigneeNoEligibleUser(t *testing.T) {
	engine := newEngine(nil, nil)

	_, err := engine.PickAssignee(context.Background())
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNoEligibleUser))
}

// Ties break uniformly at random over the minimum-load set.
func TestPickAssigneeTieBreakIsUniform(t *testing.T) {
	engine := newEngine(
		[]domain.User{active("alice"), active("bob"), active("carol")},
		map[string]int{"carol": 5},
	)

	seed := time.Now().UnixNano()
	picks := make(map[string]int)
	for i := 0; i < 1000; i++ {
		chosen, err := engine.PickAssignee(context.Background())
		require.NoError(t, err)
		picks[chosen.ID] = picks[chosen.ID] + 1
	}

	assert.Zero(t, picks["carol"], "seed %d", seed)
	assert.InDelta(t, 500, picks["alice"], 120, "seed %d", seed)
	assert.InDelta(t, 500, picks["bob"], 120, "seed %d", seed)
}

// The tie break consults the injected source with the tie size, which
// pins the choice deterministically.
func TestPickAssigneeTieBreakUsesRand(t *testing.T) {
	engine := newEngine(
		[]domain.User{active("alice"), active("bob"), active("carol")},
		nil,
	)

	var sawN int
	engine.randN = func(n int) int {
		sawN = n
		return n - 1
	}

	chosen, err := engine.PickAssignee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sawN)
	assert.Equal(t, "carol", chosen.ID)
}

func TestValidateAssignee(t *testing.T) {
	engine := newEngine([]domain.User{
		active("alice"),
		{ID: "idle", Role: domain.RoleMember, IsActive: false},
	}, nil)

	assert.NoError(t, engine.ValidateAssignee(context.Background(), ""))
	assert.NoError(t, engine.ValidateAssignee(context.Background(), "alice"))

	err := engine.ValidateAssignee(context.Background(), "ghost")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidAssignee))

	err = engine.ValidateAssignee(context.Background(), "idle")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalidAssignee))
}
