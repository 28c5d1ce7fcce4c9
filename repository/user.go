package repository

import (
	"context"

	"github.com/flowboard/backend/domain"
)

// UserRepository reads the externally managed user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, activeOnly bool) ([]domain.User, error)
}
