package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVerificationMessage(t *testing.T) {
	msg := VerificationMessage("noreply@example.com", "ada@example.com", "https://app.example.com", "tok en")
	if msg.To != "ada@example.com" || msg.From != "noreply@example.com" {
		t.Errorf("addressing = %+v", msg)
	}
	if !strings.Contains(msg.Text, "https://app.example.com/auth/verify-email?token=tok+en") &&
		!strings.Contains(msg.Text, "https://app.example.com/auth/verify-email?token=tok%20en") {
		t.Errorf("verification link missing or unescaped: %q", msg.Text)
	}
}

func TestRelayClient_Send(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key-123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := decodeJSON(r, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, "key-123")
	msg := Message{To: "ada@example.com", From: "noreply@example.com", Subject: "s", Text: "t"}
	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != msg {
		t.Errorf("relay received %+v, want %+v", got, msg)
	}
}

func TestRelayClient_SendFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewRelayClient(srv.URL, "")
	if err := c.Send(context.Background(), Message{To: "a@b.com"}); err == nil {
		t.Fatal("Send should fail on a non-200 relay response")
	}
}

func TestRelayClient_Unconfigured(t *testing.T) {
	c := NewRelayClient("", "")
	if err := c.Send(context.Background(), Message{To: "a@b.com"}); err == nil {
		t.Fatal("Send without a relay URL should fail")
	}
}

type captureMailer struct {
	sent []Message
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestSyncEnqueuer_DeliversInline(t *testing.T) {
	m := &captureMailer{}
	e := SyncEnqueuer{Mailer: m}
	if err := e.Enqueue(context.Background(), Message{To: "a@b.com", Subject: "hi"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].To != "a@b.com" {
		t.Errorf("sent = %+v", m.sent)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
