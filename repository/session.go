package repository

import (
	"context"

	"github.com/flowboard/backend/domain"
)

// SessionRepository stores issued login sessions so revoked tokens
// stop working before their JWT expiry.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.LoginSession, error)
	Save(ctx context.Context, session *domain.LoginSession) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttlSeconds int) error
}
