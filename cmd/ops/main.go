// ops is the operator CLI. Lockouts do not expire on their own, so clearing
// one is an explicit operator action:
//
//	go run ./cmd/ops unlock <email>
//	go run ./cmd/ops sweep-sessions
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/db"
	sessionrepo "github.com/conversegy/saas-starter-kit/internal/session/repository"
	sessionservice "github.com/conversegy/saas-starter-kit/internal/session/service"
	userrepo "github.com/conversegy/saas-starter-kit/internal/user/repository"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "unlock":
		if len(os.Args) != 3 {
			usage()
		}
		unlock(ctx, conn, os.Args[2])
	case "sweep-sessions":
		sweepSessions(ctx, conn, cfg)
	default:
		usage()
	}
}

func unlock(ctx context.Context, conn *sql.DB, email string) {
	users := userrepo.NewPostgresRepository(conn)
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("lookup %s: %v", email, err)
	}
	if user == nil {
		log.Fatalf("no user with email %s", email)
	}
	if err := users.ClearLoginAttempts(ctx, user.ID); err != nil {
		log.Fatalf("clear login attempts: %v", err)
	}
	log.Printf("cleared failed login attempts for %s", email)
}

func sweepSessions(ctx context.Context, conn *sql.DB, cfg *config.Config) {
	issuer := sessionservice.NewIssuer(sessionrepo.NewPostgresRepository(conn), cfg.SessionTTL(), cfg.SecureCookies())
	n, err := issuer.SweepExpired(ctx)
	if err != nil {
		log.Fatalf("sweep sessions: %v", err)
	}
	log.Printf("removed %d expired sessions", n)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ops unlock <email> | ops sweep-sessions")
	os.Exit(2)
}
