package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conversegy/saas-starter-kit/internal/audit"
	auditrepo "github.com/conversegy/saas-starter-kit/internal/audit/repository"
	authservice "github.com/conversegy/saas-starter-kit/internal/auth/service"
	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/db"
	"github.com/conversegy/saas-starter-kit/internal/email"
	identityrepo "github.com/conversegy/saas-starter-kit/internal/identity/repository"
	"github.com/conversegy/saas-starter-kit/internal/policy/signup"
	"github.com/conversegy/saas-starter-kit/internal/recaptcha"
	"github.com/conversegy/saas-starter-kit/internal/security"
	"github.com/conversegy/saas-starter-kit/internal/server"
	sessionrepo "github.com/conversegy/saas-starter-kit/internal/session/repository"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
	"github.com/conversegy/saas-starter-kit/internal/telemetry/otel"
	userrepo "github.com/conversegy/saas-starter-kit/internal/user/repository"
	verificationrepo "github.com/conversegy/saas-starter-kit/internal/verification/repository"
)

const serviceName = "saas-starter-kit"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	verifications := verificationrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)

	policy, err := signup.NewEvaluator(cfg.AllowedEmailDomainList(), cfg.BlockedEmailDomainList())
	if err != nil {
		log.Fatalf("signup policy: %v", err)
	}

	var mailer email.Mailer = email.LogMailer{}
	if cfg.MailRelayURL != "" {
		mailer = email.NewRelayClient(cfg.MailRelayURL, os.Getenv("MAIL_RELAY_API_KEY"))
	}
	var mailQueue email.Enqueuer
	if cfg.RedisAddr != "" {
		dispatcher := email.NewDispatcher(cfg.RedisAddr)
		defer dispatcher.Close()
		mailQueue = dispatcher
	} else {
		mailQueue = email.SyncEnqueuer{Mailer: mailer}
	}

	auth := authservice.NewAuthService(
		users, identities, verifications,
		security.NewHasher(cfg.BcryptCost),
		recaptcha.NewVerifier(cfg.RecaptchaSecretKey),
		policy, mailQueue, auditor,
		authservice.Options{
			Providers:        cfg.Providers,
			ConfirmEmail:     cfg.ConfirmEmail,
			MaxLoginAttempts: cfg.MaxLoginAttempts,
			VerificationTTL:  cfg.VerificationTTL(),
			AppURL:           cfg.AppURL,
			MailFrom:         cfg.MailFrom,
		},
	)
	issuer := sessionservice.NewIssuer(sessions, cfg.SessionTTL(), cfg.SecureCookies())

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Deps{
		Auth:        auth,
		Sessions:    issuer,
		DB:          conn,
		Policy:      policy,
		CORSOrigins: cfg.CORSOriginList(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
