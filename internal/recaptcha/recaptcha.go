// Package recaptcha verifies client-supplied bot-check tokens against the
// Google siteverify API.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	defaultTimeout   = 10 * time.Second
	defaultMinScore  = 0.5
)

// Sentinel errors; the handler maps them to user-facing codes.
var (
	// ErrBotCheckFailed means the token was missing, expired, or scored too low.
	ErrBotCheckFailed = errors.New("bot check failed")
	// ErrUpstream means the verification service itself failed.
	ErrUpstream = errors.New("bot check service unavailable")
)

// Verifier validates recaptcha tokens. With no secret configured the feature
// is disabled and every token validates.
type Verifier struct {
	SecretKey  string
	VerifyURL  string
	MinScore   float64
	HTTPClient *http.Client
}

// NewVerifier returns a Verifier for the given secret key. An empty secret
// disables verification.
func NewVerifier(secretKey string) *Verifier {
	return &Verifier{
		SecretKey:  secretKey,
		VerifyURL:  defaultVerifyURL,
		MinScore:   defaultMinScore,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Enabled reports whether server-side verification is configured.
func (v *Verifier) Enabled() bool {
	return v.SecretKey != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

// Validate submits the token to the remote verification service. Returns nil
// when verification is disabled. Fails closed (ErrBotCheckFailed) on a
// missing/expired/low-confidence token; remote faults surface as ErrUpstream.
// The call is bounded by the HTTP client's timeout; there is no retry.
func (v *Verifier) Validate(ctx context.Context, token string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrBotCheckFailed
	}

	form := url.Values{}
	form.Set("secret", v.SecretKey)
	form.Set("response", token)

	verifyURL := v.VerifyURL
	if verifyURL == "" {
		verifyURL = defaultVerifyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status=%d body=%s", ErrUpstream, resp.StatusCode, string(b))
	}

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if !result.Success {
		return ErrBotCheckFailed
	}
	// Score is only present for v3 keys; 0 means the field was absent.
	if result.Score > 0 && result.Score < v.MinScore {
		return ErrBotCheckFailed
	}
	return nil
}
