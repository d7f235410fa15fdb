// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/db"
	"github.com/conversegy/saas-starter-kit/internal/security"
	userdomain "github.com/conversegy/saas-starter-kit/internal/user/domain"
	userrepo "github.com/conversegy/saas-starter-kit/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
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

	users := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash(devPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:            uuid.New().String(),
		Name:          "Dev User",
		Email:         devUserEmail,
		PasswordHash:  passwordHash,
		EmailVerified: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	log.Println("Seed completed successfully.")
	log.Printf("Dev login: %s / %s", devUserEmail, devPassword)
}
