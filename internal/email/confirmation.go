package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const sendTimeout = 5 * time.Second

// SendAsync delivers message in the background. A nil sender, blank
// recipient, or empty message is a no-op. The returned channel closes once
// the send finishes.
func SendAsync(ctx context.Context, sender EmailSender, recipient string, message Message) <-chan struct{} {
	done := make(chan struct{})
	recipient = strings.TrimSpace(recipient)
	if sender == nil || recipient == "" || message.Subject == "" || message.Body == "" {
		close(done)
		return done
	}

	if ctx == nil {
		ctx = context.Background()
	}
	// The request may finish before the send does; keep its logger only.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	go func() {
		defer close(done)
		defer cancel()
		if err := sender.Send(sendCtx, recipient, message.Subject, message.Body); err != nil {
			log.Ctx(sendCtx).Error().Err(err).Str("recipient", recipient).Str("subject", message.Subject).Msg("Failed to send email")
		}
	}()
	return done
}
