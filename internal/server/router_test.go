package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	authservice "github.com/conversegy/saas-starter-kit/internal/auth/service"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
)

type failingPolicy struct{ err error }

func (p failingPolicy) HealthCheck(context.Context) error { return p.err }

func newTestRouter(policy PolicyChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	// Handlers are not invoked by these tests, so the services carry no
	// repositories.
	auth := authservice.NewAuthService(nil, nil, nil, nil, nil, nil, nil, nil, authservice.Options{})
	sessions := sessionservice.NewIssuer(nil, time.Hour, false)
	return NewRouter(Deps{Auth: auth, Sessions: sessions, Policy: policy})
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(failingPolicy{err: nil})

	w := doRequest(router, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Checks["policy"] != "ok" {
		t.Errorf("policy check = %q, want ok", body.Checks["policy"])
	}
}

func TestHealthzDegraded(t *testing.T) {
	router := newTestRouter(failingPolicy{err: errors.New("compile failed")})

	w := doRequest(router, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(nil)

	w := doRequest(router, http.MethodDelete, "/api/auth/join")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "POST" {
		t.Errorf("Allow = %q, want POST", allow)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "method-not-allowed" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestNoRoute(t *testing.T) {
	router := newTestRouter(nil)

	w := doRequest(router, http.MethodGet, "/api/unknown")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "not-found" {
		t.Errorf("code = %q", body.Error.Code)
	}
}
