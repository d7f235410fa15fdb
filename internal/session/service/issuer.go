// Package service issues and resolves cookie-backed login sessions.
package service

import (
	"context"
	"net/http"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/security"
	"github.com/conversegy/saas-starter-kit/internal/session/domain"
)

const (
	cookieBaseName = "session-token"
	// securePrefix is a compatibility detail for the session-consuming
	// middleware, not a security mechanism in itself.
	securePrefix = "__Secure-"
)

// SessionRepo is the minimal session repository needed by the issuer.
type SessionRepo interface {
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, token string) error
	DeleteAllByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Issuer mints, resolves, and revokes sessions and builds the matching cookie
// directives.
type Issuer struct {
	repo   SessionRepo
	ttl    time.Duration
	secure bool
}

// NewIssuer returns an Issuer. secure controls the Secure cookie flag and the
// __Secure- name prefix; set it when the app is served over https.
func NewIssuer(repo SessionRepo, ttl time.Duration, secure bool) *Issuer {
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Issuer{repo: repo, ttl: ttl, secure: secure}
}

// CookieName returns the session cookie name for this deployment.
func (i *Issuer) CookieName() string {
	if i.secure {
		return securePrefix + cookieBaseName
	}
	return cookieBaseName
}

// Issue mints a cryptographically random session token, persists the session
// row, and returns the cookie to set on the response.
func (i *Issuer) Issue(ctx context.Context, userID string) (*http.Cookie, error) {
	token, err := security.GenerateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     i.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(i.ttl.Seconds()),
		Secure:   i.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Resolve returns the live session for the token, or nil when the token is
// unknown or expired. Expired rows are deleted on sight.
func (i *Issuer) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := i.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(time.Now().UTC()) {
		_ = i.repo.Delete(ctx, token)
		return nil, nil
	}
	return sess, nil
}

// Revoke deletes the session for the token.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	return i.repo.Delete(ctx, token)
}

// RevokeAll deletes every session belonging to the user.
func (i *Issuer) RevokeAll(ctx context.Context, userID string) error {
	return i.repo.DeleteAllByUser(ctx, userID)
}

// SweepExpired removes expired sessions and returns the count removed.
func (i *Issuer) SweepExpired(ctx context.Context) (int64, error) {
	return i.repo.DeleteExpired(ctx, time.Now().UTC())
}

// ClearCookie returns an expired cookie that removes the session cookie from
// the client.
func (i *Issuer) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     i.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   i.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
