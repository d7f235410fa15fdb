// Worker consumes queued email delivery tasks from Redis and sends them
// through the configured mail relay. Set REDIS_ADDR and optionally
// MAIL_RELAY_URL; without a relay, messages are logged instead of sent.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/conversegy/saas-starter-kit/internal/config"
	"github.com/conversegy/saas-starter-kit/internal/email"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("worker: REDIS_ADDR is required")
	}

	var mailer email.Mailer = email.LogMailer{}
	if cfg.MailRelayURL != "" {
		mailer = email.NewRelayClient(cfg.MailRelayURL, os.Getenv("MAIL_RELAY_API_KEY"))
	}

	worker := email.NewWorker(cfg.RedisAddr, mailer)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		worker.Shutdown()
	}()

	log.Printf("worker: consuming email tasks from %s", cfg.RedisAddr)
	if err := worker.Run(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}
