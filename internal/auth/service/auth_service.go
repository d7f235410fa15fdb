// Package service implements credential and federated authentication plus
// registration on top of the user, identity, and verification stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/conversegy/saas-starter-kit/internal/audit"
	auditdomain "github.com/conversegy/saas-starter-kit/internal/audit/domain"
	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/email"
	identitydomain "github.com/conversegy/saas-starter-kit/internal/identity/domain"
	"github.com/conversegy/saas-starter-kit/internal/security"
	userdomain "github.com/conversegy/saas-starter-kit/internal/user/domain"
	verificationdomain "github.com/conversegy/saas-starter-kit/internal/verification/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
// NoSuchUser and InvalidCredentials stay distinct here; collapsing them into
// one user-facing message is the handler's single deliberate decision.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrNoSuchUser         = errors.New("no user with that email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("exceeded login attempts")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrEmailNotAllowed    = errors.New("email address not allowed")
	ErrProviderDisabled   = errors.New("auth provider not enabled")
	ErrTokenInvalid       = errors.New("invalid or expired verification token")
)

// ValidationError reports malformed, missing, or over-long input. The message
// is user-safe.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Credentials is the password-based login variant.
type Credentials struct {
	Email          string
	Password       string
	RecaptchaToken string
}

// ExternalIdentity is an already-verified identity asserted by a federated
// provider (OAuth or SAML). Verification of the assertion itself happens
// upstream; this service only records and resolves the link.
type ExternalIdentity struct {
	Provider  string
	SubjectID string
	Email     string
	Name      string
}

// Login is the tagged union of the two authentication inputs. Exactly one
// field must be set.
type Login struct {
	Credentials *Credentials
	External    *ExternalIdentity
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	RecaptchaToken string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	IncrementLoginAttempts(ctx context.Context, id string) (int, error)
	ClearLoginAttempts(ctx context.Context, id string) error
	SetEmailVerified(ctx context.Context, email string, at time.Time) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByProviderAndSubject(ctx context.Context, provider, subjectID string) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// VerificationRepo is the minimal verification token repository needed by the auth service.
type VerificationRepo interface {
	Create(ctx context.Context, t *verificationdomain.VerificationToken) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// PasswordHasher hashes and verifies passwords. *security.Hasher is the
// production implementation.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BotCheck validates a client-supplied challenge token before sensitive actions.
type BotCheck interface {
	Validate(ctx context.Context, token string) error
}

// EmailPolicy decides whether an email address may register.
type EmailPolicy interface {
	EmailAllowed(ctx context.Context, email string) (bool, error)
}

// AuthService orchestrates lookup, lockout, hash verification, registration,
// and success/failure bookkeeping.
type AuthService struct {
	users         UserRepo
	identities    IdentityRepo
	verifications VerificationRepo
	hasher        PasswordHasher
	botCheck      BotCheck
	emailPolicy   EmailPolicy
	mailQueue     email.Enqueuer
	auditor       audit.AuditLogger

	providers        config.Providers
	confirmEmail     bool
	maxLoginAttempts int
	verificationTTL  time.Duration
	appURL           string
	mailFrom         string
}

// Options carries the policy knobs for NewAuthService.
type Options struct {
	Providers        config.Providers
	ConfirmEmail     bool
	MaxLoginAttempts int
	VerificationTTL  time.Duration
	AppURL           string
	MailFrom         string
}

// NewAuthService returns an AuthService with the given dependencies.
// auditor may be nil; auditing is then disabled.
func NewAuthService(
	users UserRepo,
	identities IdentityRepo,
	verifications VerificationRepo,
	hasher PasswordHasher,
	botCheck BotCheck,
	emailPolicy EmailPolicy,
	mailQueue email.Enqueuer,
	auditor audit.AuditLogger,
	opts Options,
) *AuthService {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if opts.MaxLoginAttempts <= 0 {
		opts.MaxLoginAttempts = 5
	}
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	return &AuthService{
		users:            users,
		identities:       identities,
		verifications:    verifications,
		hasher:           hasher,
		botCheck:         botCheck,
		emailPolicy:      emailPolicy,
		mailQueue:        mailQueue,
		auditor:          auditor,
		providers:        opts.Providers,
		confirmEmail:     opts.ConfirmEmail,
		maxLoginAttempts: opts.MaxLoginAttempts,
		verificationTTL:  opts.VerificationTTL,
		appURL:           opts.AppURL,
		mailFrom:         opts.MailFrom,
	}
}

// Authenticate verifies one Login variant and returns the public identity of
// the authenticated user. It never returns the password hash.
func (s *AuthService) Authenticate(ctx context.Context, login Login) (*userdomain.PublicUser, error) {
	switch {
	case login.Credentials != nil:
		return s.authenticateCredentials(ctx, login.Credentials)
	case login.External != nil:
		return s.authenticateExternal(ctx, login.External)
	default:
		return nil, ErrNoCredentials
	}
}

func (s *AuthService) authenticateCredentials(ctx context.Context, creds *Credentials) (*userdomain.PublicUser, error) {
	if !s.providers.Credentials {
		return nil, ErrProviderDisabled
	}
	if err := s.botCheck.Validate(ctx, creds.RecaptchaToken); err != nil {
		return nil, err
	}
	if creds.Email == "" || creds.Password == "" {
		return nil, ErrNoCredentials
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}

	// Lockout is checked before any hash work so a locked account's response
	// never reveals whether the password was right.
	if user.FailedLoginAttempts >= s.maxLoginAttempts {
		s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionLoginFailure, "user", `{"reason":"account_locked"}`)
		return nil, ErrAccountLocked
	}

	if s.confirmEmail && user.EmailVerified == nil {
		return nil, ErrEmailNotConfirmed
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		count, err := s.users.IncrementLoginAttempts(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if count >= s.maxLoginAttempts {
			s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionAccountLocked, "user", "")
			return nil, ErrAccountLocked
		}
		s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionLoginFailure, "user", "")
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ClearLoginAttempts(ctx, user.ID); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, "user", "")
	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) authenticateExternal(ctx context.Context, ext *ExternalIdentity) (*userdomain.PublicUser, error) {
	if !s.providers.Enabled(ext.Provider) {
		return nil, ErrProviderDisabled
	}
	if ext.SubjectID == "" || ext.Email == "" {
		return nil, ErrNoCredentials
	}

	ident, err := s.identities.GetByProviderAndSubject(ctx, ext.Provider, ext.SubjectID)
	if err != nil {
		return nil, err
	}
	if ident != nil {
		user, err := s.users.GetByID(ctx, ident.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrNoSuchUser
		}
		s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, "user", providerMetadata(ext.Provider))
		pub := user.Public()
		return &pub, nil
	}

	// First sign-in from this provider: link to the user with the asserted
	// email, or create a verified password-less account.
	emailAddr := normalizeEmail(ext.Email)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	created := false
	if user == nil {
		now := time.Now().UTC()
		user = &userdomain.User{
			ID:            uuid.New().String(),
			Name:          ext.Name,
			Email:         emailAddr,
			EmailVerified: &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		user.Normalize()
		if err := user.Validate(); err != nil {
			return nil, &ValidationError{Field: "email", Reason: err.Error()}
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		created = true
	}
	if err := s.identities.Create(ctx, &identitydomain.Identity{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Provider:  ext.Provider,
		SubjectID: ext.SubjectID,
		Email:     emailAddr,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if created {
		s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionUserRegistered, "user", providerMetadata(ext.Provider))
	}
	s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, "user", providerMetadata(ext.Provider))
	pub := user.Public()
	return &pub, nil
}

// Register validates input, enforces the email policy, and creates the user.
// When email confirmation is required it also creates exactly one verification
// token and queues the verification email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*userdomain.PublicUser, error) {
	if err := s.botCheck.Validate(ctx, in.RecaptchaToken); err != nil {
		return nil, err
	}
	if err := validateRegisterInput(&in); err != nil {
		return nil, err
	}

	emailAddr := normalizeEmail(in.Email)
	allowed, err := s.emailPolicy.EmailAllowed(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrEmailNotAllowed
	}

	existing, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        emailAddr,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !s.confirmEmail {
		user.EmailVerified = &now
	}
	user.Normalize()
	if err := s.users.Create(ctx, user); err != nil {
		// Two concurrent registrations can both pass the GetByEmail check; the
		// unique index breaks the tie and the loser is a plain duplicate.
		if errors.Is(err, userdomain.ErrDuplicateEmail) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	if s.confirmEmail {
		if err := s.sendVerification(ctx, emailAddr); err != nil {
			// The account exists; verification can be re-sent later.
			log.Printf("auth: queue verification email for %s: %v", user.ID, err)
		}
	}

	s.auditor.LogEvent(ctx, user.ID, auditdomain.ActionUserRegistered, "user", `{"provider":"credentials"}`)
	pub := user.Public()
	return &pub, nil
}

func (s *AuthService) sendVerification(ctx context.Context, emailAddr string) error {
	token, err := security.GenerateToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.verifications.Create(ctx, &verificationdomain.VerificationToken{
		TokenHash: security.HashToken(token),
		Email:     emailAddr,
		ExpiresAt: now.Add(s.verificationTTL),
		CreatedAt: now,
	}); err != nil {
		return err
	}
	msg := email.VerificationMessage(s.mailFrom, emailAddr, s.appURL, token)
	return s.mailQueue.Enqueue(ctx, msg)
}

// VerifyEmail consumes a verification token and marks the email verified.
// A token verifies at most once; replays and expired tokens get ErrTokenInvalid.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenInvalid
	}
	emailAddr, err := s.verifications.Consume(ctx, security.HashToken(token), time.Now().UTC())
	if err != nil {
		return err
	}
	if emailAddr == "" {
		return ErrTokenInvalid
	}
	if err := s.users.SetEmailVerified(ctx, emailAddr, time.Now().UTC()); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, "", auditdomain.ActionEmailVerified, "user", "")
	return nil
}

// UserByID returns the public identity for id, or ErrNoSuchUser.
func (s *AuthService) UserByID(ctx context.Context, id string) (*userdomain.PublicUser, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}
	pub := user.Public()
	return &pub, nil
}

// ResetLockout clears the failed-attempt counter for the user with the given
// email. Operator action; lockouts do not expire on their own.
func (s *AuthService) ResetLockout(ctx context.Context, emailAddr string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoSuchUser
	}
	return s.users.ClearLoginAttempts(ctx, user.ID)
}

func validateRegisterInput(in *RegisterInput) error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len([]rune(in.Name)) > userdomain.MaxNameLength {
		return &ValidationError{Field: "name", Reason: "exceeds maximum length"}
	}
	if in.Email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if len(in.Email) > userdomain.MaxEmailLength {
		return &ValidationError{Field: "email", Reason: "exceeds maximum length"}
	}
	if in.Password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	if len(in.Password) < userdomain.MinPasswordLength {
		return &ValidationError{Field: "password", Reason: "is too short"}
	}
	if len(in.Password) > userdomain.MaxPasswordLength {
		return &ValidationError{Field: "password", Reason: "exceeds maximum length"}
	}
	probe := userdomain.User{Name: in.Name, Email: in.Email}
	probe.Normalize()
	if err := probe.Validate(); err != nil {
		return &ValidationError{Field: "email", Reason: err.Error()}
	}
	return nil
}

func normalizeEmail(email string) string {
	u := userdomain.User{Email: email}
	u.Normalize()
	return u.Email
}

func providerMetadata(provider string) string {
	return fmt.Sprintf(`{"provider":%q}`, provider)
}
