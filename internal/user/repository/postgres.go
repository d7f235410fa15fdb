package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conversegy/saas-starter-kit/internal/user/domain"
)

// Postgres class 23505: unique_violation.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, email_verified, failed_login_attempts, last_failed_login, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	u.Normalize()
	hash := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, email_verified, failed_login_attempts, last_failed_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, u.Email, hash, nullTime(u.EmailVerified), u.FailedLoginAttempts,
		nullTime(u.LastFailedLogin), u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	return err
}

// Update updates the existing user record. Missing rows are a no-op.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	u.Normalize()
	hash := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = $2, email = $3, password_hash = $4, email_verified = $5, updated_at = $6
		WHERE id = $1`,
		u.ID, u.Name, u.Email, hash, nullTime(u.EmailVerified), u.UpdatedAt,
	)
	return err
}

// Delete removes the user row. Sessions are not cascaded here; orphaned-session
// cleanup is a separate sweep.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// IncrementLoginAttempts bumps the failed-attempt counter and failure timestamp
// in one statement and returns the new count. The single UPDATE makes racing
// failed attempts serialize on the row instead of losing updates.
func (r *PostgresRepository) IncrementLoginAttempts(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_failed_login = $2,
		    updated_at = $2
		WHERE id = $1
		RETURNING failed_login_attempts`,
		id, time.Now().UTC(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ClearLoginAttempts resets the failed-attempt counter for the user.
func (r *PostgresRepository) ClearLoginAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, last_failed_login = NULL, updated_at = $2
		WHERE id = $1`,
		id, time.Now().UTC(),
	)
	return err
}

// SetEmailVerified marks the user with the given email as verified. No-op for unknown emails.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, email string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET email_verified = $2, updated_at = $2 WHERE email = $1`,
		email, at,
	)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var hash sql.NullString
	var verified, lastFailed sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &hash, &verified,
		&u.FailedLoginAttempts, &lastFailed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if hash.Valid {
		u.PasswordHash = hash.String
	}
	if verified.Valid {
		t := verified.Time
		u.EmailVerified = &t
	}
	if lastFailed.Valid {
		t := lastFailed.Time
		u.LastFailedLogin = &t
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
