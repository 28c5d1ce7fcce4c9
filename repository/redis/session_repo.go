package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/flowboard/backend/domain"
	"github.com/flowboard/backend/repository"
)

const loginKeyPrefix = "login:"

// sessionRepository keeps issued login sessions in Redis keyed by
// session id. The key TTL mirrors the session expiry, so revocation
// checks never see a session the broker has already let lapse.
type sessionRepository struct {
	client     *redislib.Client
	defaultTTL time.Duration
}

// NewSessionRepository creates a Redis-backed login-session store.
// defaultTTL backstops sessions saved without a usable expiry.
func NewSessionRepository(client *redislib.Client, defaultTTL time.Duration) repository.SessionRepository {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &sessionRepository{client: client, defaultTTL: defaultTTL}
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.LoginSession) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.defaultTTL)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(ctx, loginKeyPrefix+session.ID, payload, ttl).Err()
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.LoginSession, error) {
	raw, err := r.client.Get(ctx, loginKeyPrefix+id).Bytes()
	if errors.Is(err, redislib.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	session := new(domain.LoginSession)
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, loginKeyPrefix+id).Err()
}

// Extend pushes the key TTL forward without rewriting the payload.
func (r *sessionRepository) Extend(ctx context.Context, id string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Expire(ctx, loginKeyPrefix+id, ttl).Err()
}
