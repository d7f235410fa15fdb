package domain

import "time"

// VerificationToken proves control of an email address. Only the SHA-256 hash
// of the raw token is stored; the raw token leaves the system once, inside the
// verification email. A token is consumed exactly once.
type VerificationToken struct {
	TokenHash string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given time.
func (t *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
