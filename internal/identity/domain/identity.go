package domain

import "time"

// Provider names match the configured AUTH_PROVIDERS entries.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
	ProviderSAML   = "saml"
)

// Identity links a user to an already-verified external identity source
// (OAuth provider or SAML IdP). The subject id is the provider's stable
// identifier for the account; email is the address asserted at link time.
type Identity struct {
	ID        string
	UserID    string
	Provider  string
	SubjectID string
	Email     string
	CreatedAt time.Time
}
