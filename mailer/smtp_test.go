package mailer

import (
	"context"
	"testing"
	"time"
)

func TestNewSMTPValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"no host", Config{Port: 587, From: "noreply@example.com"}},
		{"no port", Config{Host: "smtp.example.com", From: "noreply@example.com"}},
		{"no from", Config{Host: "smtp.example.com", Port: 587}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSMTP(tc.cfg); err == nil {
				t.Fatal("expected NewSMTP to fail")
			}
		})
	}
}

func TestNewSMTPDefaults(t *testing.T) {
	s, err := NewSMTP(Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("NewSMTP failed: %v", err)
	}
	if s.subject == "" {
		t.Fatal("expected a default subject")
	}

	custom, err := NewSMTP(Config{
		Host:    "smtp.example.com",
		Port:    587,
		From:    "noreply@example.com",
		Subject: "Reset your Velorent password",
	})
	if err != nil {
		t.Fatalf("NewSMTP failed: %v", err)
	}
	if custom.subject != "Reset your Velorent password" {
		t.Fatalf("subject = %q", custom.subject)
	}
}

func TestSendRecoveryCodeCancelledContext(t *testing.T) {
	s, err := NewSMTP(Config{
		Host: "smtp.example.com",
		Port: 587,
		From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("NewSMTP failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.SendRecoveryCode(ctx, "alice@example.com", "483921", time.Now().Add(10*time.Minute)); err == nil {
		t.Fatal("expected a cancelled context to abort delivery")
	}
}
