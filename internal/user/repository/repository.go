package repository

import (
	"context"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/user/domain"
)

// Repository defines persistence for users. The login-attempt counter lives on
// the user row; Increment must be atomic against concurrent failed attempts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
	// IncrementLoginAttempts adds one failed attempt in a single conditional
	// update and returns the new count. Racing increments must not lose updates.
	IncrementLoginAttempts(ctx context.Context, id string) (int, error)
	// ClearLoginAttempts resets the failed-attempt counter to zero.
	ClearLoginAttempts(ctx context.Context, id string) error
	// SetEmailVerified marks the user with the given email as verified at the
	// given time. No-op when the email is unknown.
	SetEmailVerified(ctx context.Context, email string, at time.Time) error
}
