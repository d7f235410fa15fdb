// Package handler exposes the authentication endpoints over HTTP.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conversegy/saas-starter-kit/internal/auth/service"
	"github.com/conversegy/saas-starter-kit/internal/recaptcha"
	"github.com/conversegy/saas-starter-kit/internal/server/middleware"
	"github.com/conversegy/saas-starter-kit/internal/server/response"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
)

// Handler serves the /api/auth endpoints.
type Handler struct {
	auth     *service.AuthService
	sessions *sessionservice.Issuer
}

// New returns an auth HTTP handler.
func New(auth *service.AuthService, sessions *sessionservice.Issuer) *Handler {
	return &Handler{auth: auth, sessions: sessions}
}

// Register mounts the auth routes on r. requireSession guards the
// session-gated routes.
func (h *Handler) Register(r gin.IRouter, requireSession gin.HandlerFunc) {
	grp := r.Group("/api/auth")
	grp.POST("/join", h.join)
	grp.POST("/login", h.login)
	grp.POST("/logout", h.logout)
	grp.GET("/session", requireSession, h.session)
	grp.GET("/verify-email", h.verifyEmail)
}

type joinRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *Handler) join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation-error", "malformed request body")
		return
	}
	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		RecaptchaToken: req.RecaptchaToken,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Data(c, http.StatusCreated, user)
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "validation-error", "malformed request body")
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), service.Login{
		Credentials: &service.Credentials{
			Email:          req.Email,
			Password:       req.Password,
			RecaptchaToken: req.RecaptchaToken,
		},
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	cookie, err := h.sessions.Issue(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("auth: issue session for %s: %v", user.ID, err)
		response.Error(c, http.StatusInternalServerError, "internal-error", "internal server error")
		return
	}
	http.SetCookie(c.Writer, cookie)
	response.Data(c, http.StatusOK, user)
}

// logout clears the cookie even when the session is already gone, so it is
// not session-gated.
func (h *Handler) logout(c *gin.Context) {
	if cookie, err := c.Request.Cookie(h.sessions.CookieName()); err == nil && cookie.Value != "" {
		if err := h.sessions.Revoke(c.Request.Context(), cookie.Value); err != nil {
			log.Printf("auth: revoke session: %v", err)
		}
	}
	http.SetCookie(c.Writer, h.sessions.ClearCookie())
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "no-credentials", "not signed in")
		return
	}
	body := gin.H{"user": user}
	if sess, ok := middleware.CurrentSession(c); ok {
		body["expires"] = sess.ExpiresAt
	}
	response.Data(c, http.StatusOK, body)
}

func (h *Handler) verifyEmail(c *gin.Context) {
	if err := h.auth.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondServiceError maps auth service errors to the HTTP error envelope.
// Unknown-user and wrong-password deliberately share one response so the
// endpoint does not reveal which emails have accounts.
func respondServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(c, http.StatusBadRequest, "validation-error", verr.Error())
	case errors.Is(err, recaptcha.ErrBotCheckFailed):
		response.Error(c, http.StatusBadRequest, "bot-check-failed", "could not verify that you are human")
	case errors.Is(err, recaptcha.ErrUpstream):
		response.Error(c, http.StatusBadGateway, "upstream-failure", "a dependent service is unavailable")
	case errors.Is(err, service.ErrEmailNotAllowed):
		response.Error(c, http.StatusBadRequest, "email-not-allowed", "this email address is not allowed to sign up")
	case errors.Is(err, service.ErrUserAlreadyExists):
		response.Error(c, http.StatusBadRequest, "user-already-exists", "a user with this email already exists")
	case errors.Is(err, service.ErrProviderDisabled):
		response.Error(c, http.StatusBadRequest, "provider-disabled", "this sign-in method is not enabled")
	case errors.Is(err, service.ErrTokenInvalid):
		response.Error(c, http.StatusBadRequest, "invalid-token", "the verification link is invalid or has expired")
	case errors.Is(err, service.ErrNoCredentials):
		response.Error(c, http.StatusUnauthorized, "no-credentials", "no credentials provided")
	case errors.Is(err, service.ErrNoSuchUser), errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "invalid-credentials", "invalid credentials")
	case errors.Is(err, service.ErrAccountLocked):
		response.Error(c, http.StatusUnauthorized, "exceeded-login-attempts", "exceeded the maximum number of login attempts")
	case errors.Is(err, service.ErrEmailNotConfirmed):
		response.Error(c, http.StatusUnauthorized, "confirm-your-email", "confirm your email address before signing in")
	default:
		log.Printf("auth: unhandled service error: %v", err)
		response.Error(c, http.StatusInternalServerError, "internal-error", "internal server error")
	}
}
