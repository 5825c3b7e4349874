package notify

import (
	"context"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"

	"leadscout/internal/config"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// sendFunc abstracts SMTP delivery so tests can capture the message.
type sendFunc func(msg *mail.Message) error

// EmailSink sends a digest email through SMTP.
type EmailSink struct {
	cfg  config.Email
	send sendFunc
	now  func() time.Time
}

// NewEmailSink constructs a sink using the configured SMTP server.
func NewEmailSink(cfg config.Email) *EmailSink {
	return &EmailSink{
		cfg: cfg,
		send: func(msg *mail.Message) error {
			dialer := mail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.Sender, cfg.Password)
			dialer.Timeout = 30 * time.Second
			return dialer.DialAndSend(msg)
		},
		now: time.Now,
	}
}

func (s *EmailSink) Name() string { return "email" }

// Deliver renders the digest and sends it to every configured recipient.
func (s *EmailSink) Deliver(ctx context.Context, items []*store.Item) error {
	if len(s.cfg.Recipients) == 0 {
		return services.Wrap(services.ErrConfiguration, "notify", "email", "no recipients configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := RenderDigest(items, s.now())
	if err != nil {
		return services.Wrap(services.ErrExternalService, "notify", "email", "render digest", err)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", s.cfg.Sender)
	msg.SetHeader("To", s.cfg.Recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("Leadscout digest: %d items", len(items)))
	msg.SetBody("text/html", body)

	if err := s.send(msg); err != nil {
		return services.Wrap(services.ErrExternalService, "notify", "email", "send digest", err)
	}
	return nil
}
