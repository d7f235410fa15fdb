package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.AppURL != "http://localhost:4002" {
		t.Errorf("AppURL = %q, want default", cfg.AppURL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts = %d, want 5", cfg.MaxLoginAttempts)
	}
	if cfg.ConfirmEmail {
		t.Error("ConfirmEmail should default to false")
	}
	if !cfg.Providers.Credentials {
		t.Error("credentials provider should be enabled by default")
	}
	if cfg.Providers.Google || cfg.Providers.GitHub || cfg.Providers.SAML || cfg.Providers.Email {
		t.Error("only the credentials provider should be enabled by default")
	}
	if cfg.SessionTTL() != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want 720h", cfg.SessionTTL())
	}
	if cfg.VerificationTTL() != 24*time.Hour {
		t.Errorf("VerificationTTL = %v, want 24h", cfg.VerificationTTL())
	}
	if cfg.SecureCookies() {
		t.Error("SecureCookies should be false for an http app URL")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("APP_URL", "https://app.example.com")
	os.Setenv("AUTH_PROVIDERS", "credentials,google,email")
	os.Setenv("CONFIRM_EMAIL", "true")
	os.Setenv("MAX_LOGIN_ATTEMPTS", "3")
	os.Setenv("SESSION_TTL", "1h")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if !cfg.SecureCookies() {
		t.Error("SecureCookies should be true for an https app URL")
	}
	if !cfg.ConfirmEmail {
		t.Error("ConfirmEmail should be true")
	}
	if cfg.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts = %d, want 3", cfg.MaxLoginAttempts)
	}
	if !cfg.Providers.Credentials || !cfg.Providers.Google || !cfg.Providers.Email {
		t.Errorf("Providers = %+v, want credentials+google+email", cfg.Providers)
	}
	if cfg.Providers.GitHub || cfg.Providers.SAML {
		t.Errorf("Providers = %+v, github/saml should be disabled", cfg.Providers)
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL())
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	os.Setenv("BCRYPT_COST", "99")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject BCRYPT_COST=99")
	}
}

func TestLoad_NoKnownProvider(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_PROVIDERS", "carrier-pigeon")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a provider list with no known provider")
	}
}

func TestProviders_Enabled(t *testing.T) {
	p := Providers{Credentials: true, SAML: true}
	cases := []struct {
		name string
		want bool
	}{
		{"credentials", true},
		{"Credentials", true},
		{" saml ", true},
		{"boxyhq-saml", true},
		{"google", false},
		{"github", false},
		{"email", false},
		{"", false},
		{"unknown", false},
	}
	for _, tc := range cases {
		if got := p.Enabled(tc.name); got != tc.want {
			t.Errorf("Enabled(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDomainLists(t *testing.T) {
	os.Clearenv()
	os.Setenv("ALLOWED_EMAIL_DOMAINS", "Example.com, corp.io")
	os.Setenv("BLOCKED_EMAIL_DOMAINS", "mailinator.com")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	allowed := cfg.AllowedEmailDomainList()
	if len(allowed) != 2 || allowed[0] != "example.com" || allowed[1] != "corp.io" {
		t.Errorf("AllowedEmailDomainList = %v", allowed)
	}
	blocked := cfg.BlockedEmailDomainList()
	if len(blocked) != 1 || blocked[0] != "mailinator.com" {
		t.Errorf("BlockedEmailDomainList = %v", blocked)
	}
	if got := cfg.CORSOriginList(); len(got) != 1 {
		t.Errorf("CORSOriginList = %v", got)
	}
}
