package email

import (
	"context"

	"github.com/rs/zerolog/log"
)

// EmailSender delivers plain-text booking emails.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
	SendFrom(ctx context.Context, recipient, subject, body, sender string) error
}

// LogSender writes emails to the context logger instead of delivering them.
// It stands in for SES in development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	return LogSender{}.SendFrom(ctx, recipient, subject, body, "")
}

func (LogSender) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	log.Ctx(ctx).Info().
		Str("recipient", recipient).
		Str("sender", sender).
		Str("subject", subject).
		Int("body_length", len(body)).
		Msg("Email not delivered (log sender)")
	return nil
}
