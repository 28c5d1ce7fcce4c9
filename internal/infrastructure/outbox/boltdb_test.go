package outbox

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "outbox.db"), "activity")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueAndBatch(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{ID: "a1", Action: "task.created", Payload: []byte(`{"actor":"alice"}`)}))
	require.NoError(t, store.Enqueue(Item{ID: "a2", Action: "task.deleted", Payload: []byte(`{"actor":"bob"}`)}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestEnqueueNormalizesItem(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{Action: "task.created"}))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, 3, items[0].Priority)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestBatchOrderedByPriorityThenTime(t *testing.T) {
	store := openTestStore(t)

	now := time.Now()
	require.NoError(t, store.Enqueue(Item{ID: "late", Priority: 3, Timestamp: now.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "urgent", Priority: 1, Timestamp: now.Add(2 * time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "early", Priority: 3, Timestamp: now}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "urgent", items[0].ID)
	assert.Equal(t, "early", items[1].ID)
	assert.Equal(t, "late", items[2].ID)
}

func TestBatchRespectsLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Enqueue(Item{Action: "task.created"}))
	}

	items, err := store.GetBatch(3)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	// Reading does not consume.
	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}

func TestRemove(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{ID: "a1", Action: "task.created"}))
	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.NoError(t, store.Remove(items[0]))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRemoveByIDWithoutBucketKey(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{ID: "a1", Action: "task.created"}))
	require.NoError(t, store.Remove(Item{ID: "a1"}))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRequeueKeepsRetryCount(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Enqueue(Item{ID: "a1", Action: "task.created"}))
	items, err := store.GetBatch(1)
	require.NoError(t, err)

	item := items[0]
	item.Retries = 2
	require.NoError(t, store.Remove(item))
	require.NoError(t, store.Requeue(item))

	items, err = store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, 2, items[0].Retries)
}

func TestReopenKeepsSpooledItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")

	store, err := Open(path, "activity")
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(Item{ID: "a1", Action: "task.created"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path, "activity")
	require.NoError(t, err)
	defer reopened.Close()

	size, err := reopened.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
