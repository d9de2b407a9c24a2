package audit

import (
	"context"
	"fmt"
	"log/slog"

	"hrms/internal/platform/kafka/consumer"
	"hrms/pkg/events"
)

// Handler converts a batch of audit messages into store rows.
type Handler struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func NewHandler(store Store, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	h := &Handler{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// HandleBatch materializes one polled batch. A store failure fails the whole
// batch, which redelivers it; the idempotent insert makes that safe.
// Messages that cannot decode are logged and skipped: they would fail the
// same way on every redelivery.
func (h *Handler) HandleBatch(ctx context.Context, msgs []*consumer.Message) error {
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		entry, err := toEntry(msg.Value)
		if err != nil {
			h.logger.Error("skipping undecodable audit message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
				"error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := h.store.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("materialize audit batch of %d: %w", len(entries), err)
	}
	h.logger.Info("audit batch materialized", "entries", len(entries))
	return nil
}

func toEntry(value []byte) (Entry, error) {
	env, err := events.Unmarshal(value)
	if err != nil {
		return Entry{}, err
	}
	payload, ok := env.Payload.(events.AuditPayload)
	if !ok {
		return Entry{}, fmt.Errorf("event %s is not an audit event", env.EventID)
	}
	return Entry{
		EventID:       env.EventID,
		EventType:     string(env.EventType),
		OccurredAt:    env.OccurredAt,
		SourceService: env.SourceService,
		CorrelationID: env.CorrelationID,
		UserID:        payload.UserID,
		Action:        payload.Action,
		ResourceType:  payload.ResourceType,
		ResourceID:    payload.ResourceID,
		Description:   payload.Description,
		IPAddress:     payload.IPAddress,
		UserAgent:     payload.UserAgent,
		OldValue:      payload.OldValue,
		NewValue:      payload.NewValue,
		Changes:       payload.Changes,
	}, nil
}
