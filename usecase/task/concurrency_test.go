package task

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/backend/domain"
)

func TestConcurrentUpdatesSameKnownVersionOneWins(t *testing.T) {
	f := newFixture(t)
	task := f.mustCreate(t, "contested edit", domain.StatusTodo)

	patches := []domain.TaskPatch{
		{Title: ptr("alice's title")},
		{Title: ptr("bob's title")},
	}
	editors := []string{"alice", "bob"}
	errs := make([]error, len(patches))

	var wg sync.WaitGroup
	for i := range patches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.UpdateTask(context.Background(), task.ID, patches[i], ptr(int64(1)), actor(editors[i]))
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.IsDomainError(err, domain.ErrCodeConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one writer may win the version race")
	assert.Equal(t, 1, conflicted, "the loser must surface a conflict, not overwrite")

	stored, err := f.store.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	// The loser's patch is parked for later resolution.
	assert.Contains(t, f.publisher.kinds(), domain.EventConflictDetected)
	assert.Contains(t, f.recorder.actions(), domain.ActionConflictDetected)
}
