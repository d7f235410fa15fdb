// Package middleware provides the gin middleware shared across routes.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authservice "github.com/conversegy/saas-starter-kit/internal/auth/service"
	"github.com/conversegy/saas-starter-kit/internal/server/response"
	sessiondomain "github.com/conversegy/saas-starter-kit/internal/session/domain"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
	userdomain "github.com/conversegy/saas-starter-kit/internal/user/domain"
)

const (
	userContextKey    = "auth.user"
	sessionContextKey = "auth.session"
)

// UserSource resolves a user ID to its public view.
type UserSource interface {
	UserByID(ctx context.Context, id string) (*userdomain.PublicUser, error)
}

// RequireSession resolves the session cookie and stores the session and its
// user in the request context. Requests without a live session get 401.
func RequireSession(sessions *sessionservice.Issuer, users UserSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(sessions.CookieName())
		if err != nil || cookie.Value == "" {
			unauthorized(c)
			return
		}
		sess, err := sessions.Resolve(c.Request.Context(), cookie.Value)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "internal-error", "internal server error")
			c.Abort()
			return
		}
		if sess == nil {
			unauthorized(c)
			return
		}
		user, err := users.UserByID(c.Request.Context(), sess.UserID)
		if err != nil {
			// Sessions can outlive their user row; only that case is signed out.
			// Anything else is a store failure the client can't fix.
			if errors.Is(err, authservice.ErrNoSuchUser) {
				unauthorized(c)
				return
			}
			response.Error(c, http.StatusInternalServerError, "internal-error", "internal server error")
			c.Abort()
			return
		}
		c.Set(sessionContextKey, sess)
		c.Set(userContextKey, user)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	response.Error(c, http.StatusUnauthorized, "no-credentials", "not signed in")
	c.Abort()
}

// CurrentUser returns the user stored by RequireSession.
func CurrentUser(c *gin.Context) (*userdomain.PublicUser, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*userdomain.PublicUser)
	return user, ok
}

// CurrentSession returns the session stored by RequireSession.
func CurrentSession(c *gin.Context) (*sessiondomain.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*sessiondomain.Session)
	return sess, ok
}
