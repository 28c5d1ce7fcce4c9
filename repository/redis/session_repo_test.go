package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

func newTestRepo(t *testing.T) (repository.SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionRepository(client, time.Hour), mr
}

func TestSessionSaveGetRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	session := &domain.LoginSession{
		ID:        "s1",
		UserID:    "alice",
		ExpiresAt: time.Now().Add(30 * time.Minute),
		IP:        "10.0.0.1",
		UserAgent: "cli/1.0",
	}
	require.NoError(t, repo.Save(ctx, session))
	assert.False(t, session.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "10.0.0.1", got.IP)
}

func TestSessionSaveRejectsEmptyID(t *testing.T) {
	repo, _ := newTestRepo(t)

	assert.ErrorIs(t, repo.Save(context.Background(), nil), domain.ErrInvalidPayload)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.LoginSession{}), domain.ErrInvalidPayload)
}

func TestSessionGetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionKeyExpiresWithSession(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.LoginSession{
		ID:        "s1",
		UserID:    "alice",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}))

	mr.FastForward(11 * time.Minute)

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionSaveBackfillsExpiry(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	// No expiry on the session falls back to the default TTL.
	session := &domain.LoginSession{ID: "s1", UserID: "alice"}
	require.NoError(t, repo.Save(ctx, session))
	assert.True(t, session.ExpiresAt.After(session.CreatedAt))

	ttl := mr.TTL(loginKeyPrefix + "s1")
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestSessionDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.LoginSession{
		ID:        "s1",
		UserID:    "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Deleting an absent session is not an error.
	assert.NoError(t, repo.Delete(ctx, "s1"))
}

func TestSessionExtend(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.LoginSession{
		ID:        "s1",
		UserID:    "alice",
		ExpiresAt: time.Now().Add(time.Minute),
	}))
	require.NoError(t, repo.Extend(ctx, "s1", 1800))

	ttl := mr.TTL(loginKeyPrefix + "s1")
	assert.Greater(t, ttl, 20*time.Minute)

	mr.FastForward(5 * time.Minute)
	_, err := repo.Get(ctx, "s1")
	assert.NoError(t, err)
}
