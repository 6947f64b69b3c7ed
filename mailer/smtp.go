package mailer

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// Config holds the SMTP connection settings and the sender address.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Subject overrides the default message subject when non-empty.
	Subject string
}

// SMTP delivers recovery codes over SMTP using gomail. It implements
// recovery.Notifier.
type SMTP struct {
	dialer  *gomail.Dialer
	from    string
	subject string
}

func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "Your password recovery code"
	}

	return &SMTP{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: subject,
	}, nil
}

// SendRecoveryCode emails the one-time code to the recipient. The message
// states the absolute expiry so the recipient knows how long the code
// stays usable.
func (s *SMTP) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", s.subject)

	body := fmt.Sprintf(`
		<h3>Password recovery requested</h3>
		<p>Your recovery code is: <strong>%s</strong></p>
		<p>It expires at %s.</p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, code, expiresAt.UTC().Format(time.RFC1123))

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send recovery code email: %w", err)
	}

	return nil
}
