package mailer

import (
	"context"
	"errors"
	"testing"

	"online_exam_backend/internal/config"
)

func TestNewSelectsImplementation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MailConfig
		smtp bool
	}{
		{"disabled", config.MailConfig{Enabled: false, Host: "smtp.example.com"}, false},
		{"no host", config.MailConfig{Enabled: true}, false},
		{"enabled", config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isSMTP := New(tt.cfg).(*SMTPMailer)
			if isSMTP != tt.smtp {
				t.Fatalf("SMTP mailer = %v, want %v", isSMTP, tt.smtp)
			}
		})
	}
}

func TestSMTPMailerFromFallsBackToUsername(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 465, Username: "noreply@example.com"})
	if m.from != "noreply@example.com" {
		t.Fatalf("from = %q", m.from)
	}
	if !m.dialer.SSL {
		t.Fatal("port 465 should use implicit TLS")
	}
}

func TestSendRequiresRecipient(t *testing.T) {
	ctx := context.Background()
	if err := (LogMailer{}).Send(ctx, Message{Subject: "x"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("LogMailer err = %v", err)
	}
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 587})
	if err := m.Send(ctx, Message{Subject: "x"}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("SMTPMailer err = %v", err)
	}
	if err := (LogMailer{}).Send(ctx, Message{To: []string{"a@example.com"}, Subject: "x"}); err != nil {
		t.Fatalf("LogMailer send: %v", err)
	}
}
