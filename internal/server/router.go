// Package server assembles the HTTP router.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authhandler "github.com/conversegy/saas-starter-kit/internal/auth/handler"
	authservice "github.com/conversegy/saas-starter-kit/internal/auth/service"
	"github.com/conversegy/saas-starter-kit/internal/server/middleware"
	"github.com/conversegy/saas-starter-kit/internal/server/response"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
)

// PolicyChecker reports whether the signup policy engine is usable.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the service dependencies for the HTTP router.
type Deps struct {
	Auth     *authservice.AuthService
	Sessions *sessionservice.Issuer
	// DB is pinged by the health endpoint. If nil, the DB check is skipped.
	DB *sql.DB
	// Policy is checked by the health endpoint. If nil, the policy check is skipped.
	Policy PolicyChecker
	// CORSOrigins is the allow-list for cross-origin requests. Empty disables CORS.
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware, auth routes, and the
// health endpoint.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Telemetry())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.HandleMethodNotAllowed = true
	router.NoMethod(methodNotAllowed(router))
	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "not-found", "resource not found")
	})

	router.GET("/health", healthHandler(deps.DB, deps.Policy))

	requireSession := middleware.RequireSession(deps.Sessions, deps.Auth)
	authhandler.New(deps.Auth, deps.Sessions).Register(router, requireSession)

	return router
}

// methodNotAllowed responds 405 with an Allow header listing the methods
// registered for the requested path.
func methodNotAllowed(engine *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var allow []string
		for _, r := range engine.Routes() {
			if r.Path == c.Request.URL.Path {
				allow = append(allow, r.Method)
			}
		}
		if len(allow) > 0 {
			sort.Strings(allow)
			c.Header("Allow", strings.Join(allow, ", "))
		}
		response.Error(c, http.StatusMethodNotAllowed, "method-not-allowed", "method not allowed")
	}
}

func healthHandler(db *sql.DB, policy PolicyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = "unreachable"
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if policy != nil {
			if err := policy.HealthCheck(ctx); err != nil {
				checks["policy"] = "failing"
				healthy = false
			} else {
				checks["policy"] = "ok"
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}
