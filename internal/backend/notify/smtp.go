package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the SMTP settings read from the environment.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// LoadSMTPConfig parses SMTPConfig from environment variables.
func LoadSMTPConfig() (SMTPConfig, error) {
	return env.ParseAs[SMTPConfig]()
}

// Enabled reports whether a host was configured at all.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

func (c SMTPConfig) validate() error {
	if c.Host == "" {
		return errors.New("missing SMTP_HOST")
	}
	if c.Port == 0 {
		return errors.New("missing SMTP_PORT")
	}
	if c.From == "" {
		return errors.New("missing SMTP_FROM")
	}
	return nil
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends plain text messages through a gomail dialer.
type SMTP struct {
	from   string
	sender sender
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SMTP{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (s *SMTP) SendEmailVerification(_ context.Context, email, token string) error {
	body := fmt.Sprintf("Confirm your email address with this code:\n\n%s\n", token)
	return s.send(email, "Verify your email", body)
}

func (s *SMTP) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Use this code to reset your password:\n\n%s\n\nIt expires at %s.\n",
		token, expiresAt.UTC().Format(time.RFC1123),
	)
	return s.send(email, "Reset your password", body)
}

func (s *SMTP) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
