package domain

import "time"

// Audit actions recorded by the auth code paths.
const (
	ActionLoginSuccess   = "login_success"
	ActionLoginFailure   = "login_failure"
	ActionAccountLocked  = "account_locked"
	ActionUserRegistered = "user_registered"
	ActionEmailVerified  = "email_verified"
	ActionLogout         = "logout"
)

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
