package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Email is a rendered-enough message for the transport: the template name and
// data travel as-is and the delivery channel decides how to render them.
type Email struct {
	To       string
	Name     string
	Subject  string
	Template string
	Data     map[string]any
}

// Mailer delivers one email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer writes emails to the log instead of sending them. Default in
// development environments.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.Logger.Info("email (log delivery)",
		"to", email.To,
		"subject", email.Subject,
		"template", email.Template)
	return nil
}

// SMTPConfig holds the relay settings for real delivery.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("smtp address is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

func (m *SMTPMailer) Send(_ context.Context, email Email) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}
	body := buildMessage(m.cfg.From, email)
	if err := smtp.SendMail(m.cfg.Addr, auth, m.cfg.From, []string{email.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.To, err)
	}
	return nil
}

func buildMessage(from string, email Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", email.Name)
	fmt.Fprintf(&b, "[template: %s]\r\n", email.Template)
	for k, v := range email.Data {
		fmt.Fprintf(&b, "%s: %v\r\n", k, v)
	}
	return []byte(b.String())
}
