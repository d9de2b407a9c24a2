// Package notification consumes notification-queue events and turns them
// into emails. The handler is idempotent per event id: redeliveries after a
// crash-before-commit do not send the same email twice.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"hrms/internal/platform/kafka/consumer"
	"hrms/pkg/email"
	"hrms/pkg/events"
)

type Handler struct {
	mailer Mailer
	dedupe DedupeStore
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithDedupe(store DedupeStore) Option {
	return func(h *Handler) { h.dedupe = store }
}

func NewHandler(mailer Mailer, opts ...Option) (*Handler, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	h := &Handler{
		mailer: mailer,
		dedupe: NewMemoryDedupe(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one notification message. A returned error tells the
// consumer to dead-letter the message; a nil return commits it.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	env, err := events.Unmarshal(msg.Value)
	if err != nil {
		return fmt.Errorf("decode notification event: %w", err)
	}
	payload, ok := env.Payload.(events.NotificationPayload)
	if !ok {
		return fmt.Errorf("event %s is not a notification event", env.EventID)
	}

	claimed := true
	first, err := h.dedupe.MarkProcessed(ctx, env.EventID)
	if err != nil {
		claimed = false
		// A broken dedupe store must not stop delivery: at-least-once
		// beats silently dropping an email.
		h.logger.Warn("dedupe store unavailable, sending anyway",
			"event_id", env.EventID, "error", err)
	} else if !first {
		h.logger.Info("duplicate notification event skipped", "event_id", env.EventID)
		return nil
	}

	name := payload.RecipientName
	if name == "" {
		name = email.DisplayName(payload.RecipientEmail)
	}

	if err := h.mailer.Send(ctx, Email{
		To:       payload.RecipientEmail,
		Name:     name,
		Subject:  payload.Subject,
		Template: payload.TemplateName,
		Data:     payload.TemplateData,
	}); err != nil {
		// Give the claim back so a replay of the dead-lettered message
		// is not mistaken for a duplicate.
		if claimed {
			if relErr := h.dedupe.Release(ctx, env.EventID); relErr != nil {
				h.logger.Warn("releasing dedupe claim failed", "event_id", env.EventID, "error", relErr)
			}
		}
		return fmt.Errorf("send email for event %s: %w", env.EventID, err)
	}

	h.logger.Info("notification delivered",
		"event_id", env.EventID,
		"recipient", payload.RecipientEmail,
		"template", payload.TemplateName)
	return nil
}
