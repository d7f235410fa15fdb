// Package email builds and delivers transactional mail (verification links)
// through a queue and an HTTP mail relay.
package email

import (
	"context"
	"fmt"
	"log"
	"net/url"
)

// Message is one outgoing mail.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Mailer delivers a single message. Implementations must not log message
// bodies; verification links are secrets.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records that a send happened without delivering anything. Used
// when no mail relay is configured (local development).
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("email: no relay configured; dropping %q to %s", msg.Subject, msg.To)
	return nil
}

// VerificationMessage builds the confirm-your-email message. token is the raw
// verification token; appURL is the public base URL.
func VerificationMessage(from, to, appURL, token string) Message {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", appURL, url.QueryEscape(token))
	return Message{
		To:      to,
		From:    from,
		Subject: "Confirm your email address",
		Text: "Before you can sign in, please confirm your email address by visiting the link below:\n\n" +
			link + "\n\nIf you did not create an account, you can ignore this message.\n",
	}
}
