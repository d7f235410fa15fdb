package repository

import (
	"context"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, token string) error
	DeleteAllByUser(ctx context.Context, userID string) error
	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns how many rows were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
