// Package mailer delivers outbound mail for the contact form.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"sync"

	"lectern/internal/config"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is a plain-text mail with an optional reply-to.
type Message struct {
	To      mail.Address
	ReplyTo *mail.Address
	Subject string
	Text    string
}

// Mailer sends a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when an API key is configured and a
// console mailer otherwise.
func New(cfg *config.Config, logger *slog.Logger) Mailer {
	from, err := mail.ParseAddress(cfg.MailFrom)
	if err != nil {
		from = &mail.Address{Name: "Lectern", Address: cfg.MailFrom}
	}
	if cfg.SendGridAPIKey == "" {
		return NewConsole(logger)
	}
	return NewSendGrid(cfg.SendGridAPIKey, *from)
}

// SendGrid posts messages to the SendGrid v3 API.
type SendGrid struct {
	key  string
	from *sgmail.Email
	host string
}

func NewSendGrid(apiKey string, from mail.Address) *SendGrid {
	return &SendGrid{
		key:  apiKey,
		from: sgmail.NewEmail(from.Name, from.Address),
		host: sendgridHost,
	}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	if msg.ReplyTo != nil {
		m.SetReplyTo(sgmail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Address))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// Console logs messages instead of sending them. Sent keeps a copy of each.
type Console struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

func (c *Console) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "mail (console)",
		slog.String("to", msg.To.String()),
		slog.String("subject", msg.Subject),
	)
	return nil
}

func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
