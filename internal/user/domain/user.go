package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Field length policies shared by validation and persistence. The UI enforces
// the same limits; 64 is the single source of truth for name length.
const (
	MaxNameLength     = 64
	MaxEmailLength    = 255
	MaxPasswordLength = 128
	MinPasswordLength = 8
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ErrDuplicateEmail is returned by repositories when a write collides with the
// unique index on email.
var ErrDuplicateEmail = errors.New("email already in use")

// User is the core user entity. PasswordHash is empty for accounts that have
// only ever authenticated through a federated provider.
type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	EmailVerified       *time.Time
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicUser is the subset of User safe to return to clients. It never carries
// the password hash.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the client-safe view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Normalize truncates the name to the policy maximum. Applied on every write
// so the persistence layer never sees an over-long name.
func (u *User) Normalize() {
	if r := []rune(u.Name); len(r) > MaxNameLength {
		u.Name = string(r[:MaxNameLength])
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
}

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if len(u.Email) > MaxEmailLength {
		return errors.New("email exceeds maximum length")
	}
	if !emailPattern.MatchString(u.Email) {
		return errors.New("invalid email format")
	}
	if len([]rune(u.Name)) > MaxNameLength {
		return errors.New("name exceeds maximum length")
	}
	return nil
}

// EmailDomain returns the domain part of the user's email, lowercased, or ""
// if the email is malformed.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
