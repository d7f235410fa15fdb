// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Providers is the set of sign-in providers enabled for this deployment.
// It is built once at startup from AUTH_PROVIDERS and treated as immutable.
type Providers struct {
	Credentials bool
	Google      bool
	GitHub      bool
	SAML        bool
	Email       bool
}

// Enabled reports whether the named provider is enabled. Unknown names are disabled.
func (p Providers) Enabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "credentials":
		return p.Credentials
	case "google":
		return p.Google
	case "github":
		return p.GitHub
	case "saml", "boxyhq-saml":
		return p.SAML
	case "email":
		return p.Email
	default:
		return false
	}
}

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AppURL is the public URL the app is served from; an https scheme turns on
	// the Secure cookie flag and the __Secure- cookie name prefix.
	AppURL string `mapstructure:"APP_URL"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AuthProviders is the comma-separated provider list (e.g. "credentials,google,email").
	AuthProviders string `mapstructure:"AUTH_PROVIDERS"`
	// ConfirmEmail requires email confirmation before credential sign-in when true.
	ConfirmEmail bool `mapstructure:"CONFIRM_EMAIL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// MaxLoginAttempts is the consecutive-failure threshold before lockout; default 5.
	MaxLoginAttempts int `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	// SessionTTLRaw is the session lifetime (e.g. "720h" for 30 days).
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// VerificationTTLRaw is the email verification token lifetime (e.g. "24h").
	VerificationTTLRaw string `mapstructure:"VERIFICATION_TTL"`
	// RecaptchaSecretKey enables server-side bot-check verification when set.
	RecaptchaSecretKey string `mapstructure:"RECAPTCHA_SECRET_KEY"`
	// RecaptchaSiteKey is the client widget key; informational on the server side.
	RecaptchaSiteKey string `mapstructure:"RECAPTCHA_SITE_KEY"`
	// AllowedEmailDomains restricts signup to these domains when non-empty (comma-separated).
	AllowedEmailDomains string `mapstructure:"ALLOWED_EMAIL_DOMAINS"`
	// BlockedEmailDomains rejects signup from these domains (comma-separated).
	BlockedEmailDomains string `mapstructure:"BLOCKED_EMAIL_DOMAINS"`
	// CORSAllowedOrigins is the comma-separated list of allowed origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// RedisAddr is the Redis address for the email job queue (host:port).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// MailRelayURL is the HTTP mail relay endpoint; empty means log-only delivery.
	MailRelayURL string `mapstructure:"MAIL_RELAY_URL"`
	// MailFrom is the From address for outgoing mail.
	MailFrom string `mapstructure:"MAIL_FROM"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Providers is parsed from AuthProviders at load time.
	Providers Providers `mapstructure:"-"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_URL", "http://localhost:4002")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_PROVIDERS", "credentials")
	v.SetDefault("CONFIRM_EMAIL", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("VERIFICATION_TTL", "24h")
	v.SetDefault("RECAPTCHA_SECRET_KEY", "")
	v.SetDefault("RECAPTCHA_SITE_KEY", "")
	v.SetDefault("ALLOWED_EMAIL_DOMAINS", "")
	v.SetDefault("BLOCKED_EMAIL_DOMAINS", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:4002")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("MAIL_RELAY_URL", "")
	v.SetDefault("MAIL_FROM", "noreply@example.com")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.MaxLoginAttempts <= 0 {
		return nil, errors.New("config: MAX_LOGIN_ATTEMPTS must be positive")
	}

	cfg.Providers = parseProviders(cfg.AuthProviders)
	if !cfg.Providers.Credentials && !cfg.Providers.Google && !cfg.Providers.GitHub &&
		!cfg.Providers.SAML && !cfg.Providers.Email {
		return nil, fmt.Errorf("config: AUTH_PROVIDERS %q enables no known provider", cfg.AuthProviders)
	}

	return &cfg, nil
}

func parseProviders(raw string) Providers {
	var p Providers
	for _, part := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "credentials":
			p.Credentials = true
		case "google":
			p.Google = true
		case "github":
			p.GitHub = true
		case "saml", "boxyhq-saml":
			p.SAML = true
		case "email":
			p.Email = true
		}
	}
	return p
}

// SecureCookies reports whether the app is served over an encrypted transport.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}

// SessionTTL parses SESSION_TTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// VerificationTTL parses VERIFICATION_TTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	d, err := time.ParseDuration(c.VerificationTTLRaw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// AllowedEmailDomainList returns the allow-list from the comma-separated config.
func (c *Config) AllowedEmailDomainList() []string {
	return splitDomains(c.AllowedEmailDomains)
}

// BlockedEmailDomainList returns the deny-list from the comma-separated config.
func (c *Config) BlockedEmailDomainList() []string {
	return splitDomains(c.BlockedEmailDomains)
}

// CORSOriginList returns allowed CORS origins from the comma-separated config.
func (c *Config) CORSOriginList() []string {
	out := make([]string, 0, 2)
	for _, p := range strings.Split(c.CORSAllowedOrigins, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitDomains(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
