package events

import (
	"context"
	"log/slog"
	"time"
)

// EmailSender delivers a templated message. The HTTP mail relay client in
// internal/client satisfies it.
type EmailSender interface {
	SendTemplate(ctx context.Context, recipient, templateName string, data map[string]string) error
}

const emailSendTimeout = 10 * time.Second

// RegisterEmailHandlers wires outbound email to the bus. Delivery failures
// are logged and dropped; the user can always request a resend.
func RegisterEmailHandlers(bus *Bus, sender EmailSender, logger *slog.Logger) {
	bus.Subscribe(TopicVerificationRequested, func(ev Event) {
		payload, ok := ev.Payload.(VerificationRequested)
		if !ok {
			logger.Error("unexpected payload type", "topic", ev.Topic, "event_id", ev.ID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()

		data := map[string]string{
			"name":             payload.Name,
			"verificationLink": payload.VerificationLink,
		}
		if err := sender.SendTemplate(ctx, payload.Email, "verify-email", data); err != nil {
			logger.Error("verification email delivery failed", "email", payload.Email, "error", err)
			return
		}
		logger.Info("verification email sent", "email", payload.Email)
	})
}
