package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/verification/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a verification token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the token. The token must have TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.VerificationToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_tokens (token_hash, email, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		t.TokenHash, t.Email, t.ExpiresAt, t.CreatedAt,
	)
	return err
}

// Consume deletes the unexpired token in a single conditional statement and
// returns its email, so concurrent consumers cannot both succeed.
func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM verification_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING email`,
		tokenHash, now,
	).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return email, nil
}

// DeleteByEmail removes any outstanding tokens for the email.
func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_tokens WHERE email = $1`, email)
	return err
}
