package repository

import (
	"context"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/verification/domain"
)

// Repository defines persistence for email verification tokens.
type Repository interface {
	Create(ctx context.Context, t *domain.VerificationToken) error
	// Consume atomically deletes the unexpired token with the given hash and
	// returns its email. Returns "" (no error) when the token is unknown or
	// expired; a token can therefore be consumed at most once.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	// DeleteByEmail removes any outstanding tokens for the email.
	DeleteByEmail(ctx context.Context, email string) error
}
