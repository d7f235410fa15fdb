package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conversegy/saas-starter-kit/internal/auth/service"
	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/email"
	identitydomain "github.com/conversegy/saas-starter-kit/internal/identity/domain"
	"github.com/conversegy/saas-starter-kit/internal/security"
	"github.com/conversegy/saas-starter-kit/internal/server/middleware"
	sessiondomain "github.com/conversegy/saas-starter-kit/internal/session/domain"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
	userdomain "github.com/conversegy/saas-starter-kit/internal/user/domain"
	verificationdomain "github.com/conversegy/saas-starter-kit/internal/verification/domain"
)

type stubUsers struct {
	byID map[string]*userdomain.User
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	if u, ok := s.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	for _, u := range s.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubUsers) Create(_ context.Context, u *userdomain.User) error {
	cp := *u
	s.byID[u.ID] = &cp
	return nil
}

func (s *stubUsers) IncrementLoginAttempts(_ context.Context, id string) (int, error) {
	u := s.byID[id]
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (s *stubUsers) ClearLoginAttempts(_ context.Context, id string) error {
	s.byID[id].FailedLoginAttempts = 0
	return nil
}

func (s *stubUsers) SetEmailVerified(_ context.Context, email string, at time.Time) error {
	for _, u := range s.byID {
		if u.Email == email {
			t := at
			u.EmailVerified = &t
		}
	}
	return nil
}

type stubIdentities struct{}

func (stubIdentities) GetByProviderAndSubject(context.Context, string, string) (*identitydomain.Identity, error) {
	return nil, nil
}
func (stubIdentities) Create(context.Context, *identitydomain.Identity) error { return nil }

type stubVerifications struct {
	tokens map[string]*verificationdomain.VerificationToken
}

func (s *stubVerifications) Create(_ context.Context, t *verificationdomain.VerificationToken) error {
	s.tokens[t.TokenHash] = t
	return nil
}

func (s *stubVerifications) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	t, ok := s.tokens[hash]
	if !ok || !t.ExpiresAt.After(now) {
		return "", nil
	}
	delete(s.tokens, hash)
	return t.Email, nil
}

type stubSessions struct {
	byToken map[string]*sessiondomain.Session
}

func (s *stubSessions) GetByToken(_ context.Context, token string) (*sessiondomain.Session, error) {
	if sess, ok := s.byToken[token]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (s *stubSessions) Create(_ context.Context, sess *sessiondomain.Session) error {
	cp := *sess
	s.byToken[sess.Token] = &cp
	return nil
}

func (s *stubSessions) Delete(_ context.Context, token string) error {
	delete(s.byToken, token)
	return nil
}

func (s *stubSessions) DeleteAllByUser(context.Context, string) error { return nil }

func (s *stubSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type noBotCheck struct{}

func (noBotCheck) Validate(context.Context, string) error { return nil }

type allowPolicy struct{}

func (allowPolicy) EmailAllowed(context.Context, string) (bool, error) { return true, nil }

type discardMail struct{}

func (discardMail) Enqueue(context.Context, email.Message) error { return nil }

type testEnv struct {
	router        *gin.Engine
	users         *stubUsers
	verifications *stubVerifications
	hasher        *security.Hasher
}

func newTestEnv(t *testing.T, confirmEmail bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		users:         &stubUsers{byID: make(map[string]*userdomain.User)},
		verifications: &stubVerifications{tokens: make(map[string]*verificationdomain.VerificationToken)},
		hasher:        security.NewHasher(4),
	}
	svc := service.NewAuthService(
		env.users, stubIdentities{}, env.verifications,
		env.hasher, noBotCheck{}, allowPolicy{}, discardMail{}, nil,
		service.Options{
			Providers:        config.Providers{Credentials: true},
			ConfirmEmail:     confirmEmail,
			MaxLoginAttempts: 3,
			AppURL:           "http://localhost:4002",
		},
	)
	issuer := sessionservice.NewIssuer(&stubSessions{byToken: make(map[string]*sessiondomain.Session)}, time.Hour, false)

	env.router = gin.New()
	New(svc, issuer).Register(env.router, middleware.RequireSession(issuer, svc))
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, password string) *userdomain.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:            "user-1",
		Name:          "Ada",
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: &now,
	}
	e.users.byID[u.ID] = u
	return u
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	if body.Error.Message == "" {
		t.Errorf("error envelope has no message: %q", w.Body.String())
	}
	return body.Error.Code
}

func dataUser(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode data body %q: %v", w.Body.String(), err)
	}
	return body.Data
}

func TestJoin(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(http.MethodPost, "/api/auth/join",
		`{"name":"Ada","email":"ada@example.com","password":"longenough"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	data := dataUser(t, w)
	if data["email"] != "ada@example.com" {
		t.Errorf("data.email = %v", data["email"])
	}
	if _, leaked := data["passwordHash"]; leaked {
		t.Error("response leaked the password hash")
	}
}

func TestJoinDuplicate(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	w := env.do(http.MethodPost, "/api/auth/join",
		`{"name":"Ada","email":"ada@example.com","password":"longenough"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "user-already-exists" {
		t.Errorf("code = %q", code)
	}
}

func TestJoinValidation(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(http.MethodPost, "/api/auth/join",
		`{"name":"Ada","email":"ada@example.com","password":"short"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "validation-error" {
		t.Errorf("code = %q", code)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	w := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"longenough"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == "session-token" {
			found = c
		}
	}
	if found == nil {
		t.Fatal("no session cookie set")
	}
	if !found.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
	if found.Value == "" {
		t.Error("session cookie has empty value")
	}
}

func TestLoginWrongPasswordIndistinguishableFromUnknownUser(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	wrong := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"incorrect1"}`)
	unknown := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"ghost@example.com","password":"incorrect1"}`)

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401, 401", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
	if code := errorCode(t, wrong); code != "invalid-credentials" {
		t.Errorf("code = %q", code)
	}
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w = env.do(http.MethodPost, "/api/auth/login",
			`{"email":"ada@example.com","password":"incorrect1"}`)
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "exceeded-login-attempts" {
		t.Errorf("code = %q", code)
	}
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	noCookie := env.do(http.MethodGet, "/api/auth/session", "")
	if noCookie.Code != http.StatusUnauthorized {
		t.Fatalf("no cookie: status = %d", noCookie.Code)
	}

	login := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"longenough"}`)
	var sessionCookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == "session-token" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("login set no session cookie")
	}

	w := env.do(http.MethodGet, "/api/auth/session", "", sessionCookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	data := dataUser(t, w)
	user, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("data.user missing: %q", w.Body.String())
	}
	if user["email"] != "ada@example.com" {
		t.Errorf("user.email = %v", user["email"])
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, false)
	env.seedUser(t, "ada@example.com", "longenough")

	login := env.do(http.MethodPost, "/api/auth/login",
		`{"email":"ada@example.com","password":"longenough"}`)
	var sessionCookie *http.Cookie
	for _, c := range login.Result().Cookies() {
		if c.Name == "session-token" {
			sessionCookie = c
		}
	}

	out := env.do(http.MethodPost, "/api/auth/logout", "", sessionCookie)
	if out.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", out.Code)
	}
	var cleared *http.Cookie
	for _, c := range out.Result().Cookies() {
		if c.Name == "session-token" {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Error("logout did not clear the session cookie")
	}

	after := env.do(http.MethodGet, "/api/auth/session", "", sessionCookie)
	if after.Code != http.StatusUnauthorized {
		t.Errorf("session after logout: status = %d, want 401", after.Code)
	}
}

func TestVerifyEmailEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	token, err := security.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	now := time.Now().UTC()
	env.verifications.tokens[security.HashToken(token)] = &verificationdomain.VerificationToken{
		TokenHash: security.HashToken(token),
		Email:     "ada@example.com",
		ExpiresAt: now.Add(time.Hour),
	}

	w := env.do(http.MethodGet, "/api/auth/verify-email?token="+token, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	replay := env.do(http.MethodGet, "/api/auth/verify-email?token="+token, "")
	if replay.Code != http.StatusBadRequest {
		t.Fatalf("replay status = %d", replay.Code)
	}
	if code := errorCode(t, replay); code != "invalid-token" {
		t.Errorf("code = %q", code)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(http.MethodPost, "/api/auth/login", `{"email":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if code := errorCode(t, w); code != "validation-error" {
		t.Errorf("code = %q", code)
	}
}
