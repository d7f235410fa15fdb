package domain

import "time"

// Session is a server-side login session. Token is the opaque high-entropy
// identifier carried in the cookie; it is the only secret the client holds.
// A session references a live user at creation time but may outlive the user
// row; orphaned-session cleanup happens in the expiry sweep.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
