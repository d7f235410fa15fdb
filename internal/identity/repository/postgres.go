package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/conversegy/saas-starter-kit/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByProviderAndSubject returns the identity for (provider, subject id), or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByProviderAndSubject(ctx context.Context, provider, subjectID string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, subject_id, email, created_at
		FROM identities WHERE provider = $1 AND subject_id = $2`,
		provider, subjectID,
	)
	var i domain.Identity
	err := row.Scan(&i.ID, &i.UserID, &i.Provider, &i.SubjectID, &i.Email, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// ListByUser returns all federated identities linked to the user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, provider, subject_id, email, created_at
		FROM identities WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Identity
	for rows.Next() {
		var i domain.Identity
		if err := rows.Scan(&i.ID, &i.UserID, &i.Provider, &i.SubjectID, &i.Email, &i.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &i)
	}
	return out, rows.Err()
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, user_id, provider, subject_id, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, i.Provider, i.SubjectID, i.Email, i.CreatedAt,
	)
	return err
}

// Delete removes the identity row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	return err
}
