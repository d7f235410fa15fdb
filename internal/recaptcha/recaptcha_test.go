package recaptcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidate_DisabledShortCircuits(t *testing.T) {
	v := NewVerifier("")
	if err := v.Validate(context.Background(), ""); err != nil {
		t.Fatalf("Validate with no secret should succeed, got %v", err)
	}
	if err := v.Validate(context.Background(), "anything"); err != nil {
		t.Fatalf("Validate with no secret should succeed, got %v", err)
	}
}

func TestValidate_EmptyTokenFailsClosed(t *testing.T) {
	v := NewVerifier("secret")
	if err := v.Validate(context.Background(), "  "); !errors.Is(err, ErrBotCheckFailed) {
		t.Fatalf("empty token should fail closed, got %v", err)
	}
}

func TestValidate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("secret") != "secret" || r.PostForm.Get("response") != "tok" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Write([]byte(`{"success": true, "score": 0.9}`))
	}))
	defer srv.Close()

	v := NewVerifier("secret")
	v.VerifyURL = srv.URL
	if err := v.Validate(context.Background(), "tok"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error-codes": ["timeout-or-duplicate"]}`))
	}))
	defer srv.Close()

	v := NewVerifier("secret")
	v.VerifyURL = srv.URL
	if err := v.Validate(context.Background(), "tok"); !errors.Is(err, ErrBotCheckFailed) {
		t.Fatalf("rejected token should fail closed, got %v", err)
	}
}

func TestValidate_LowScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "score": 0.1}`))
	}))
	defer srv.Close()

	v := NewVerifier("secret")
	v.VerifyURL = srv.URL
	if err := v.Validate(context.Background(), "tok"); !errors.Is(err, ErrBotCheckFailed) {
		t.Fatalf("low score should fail closed, got %v", err)
	}
}

func TestValidate_UpstreamFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewVerifier("secret")
	v.VerifyURL = srv.URL
	err := v.Validate(context.Background(), "tok")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("5xx should map to ErrUpstream, got %v", err)
	}
	if errors.Is(err, ErrBotCheckFailed) {
		t.Fatal("upstream fault must be distinguishable from a failed check")
	}
}

func TestValidate_TransportError(t *testing.T) {
	v := NewVerifier("secret")
	v.VerifyURL = "http://127.0.0.1:1" // nothing listens here
	if err := v.Validate(context.Background(), "tok"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("transport error should map to ErrUpstream, got %v", err)
	}
}
