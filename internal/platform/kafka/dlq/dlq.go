// Package dlq wraps failed messages with failure context and republishes them
// to the per-topic dead-letter destination. Records are never auto-deleted by
// this layer; a lower-urgency remediation path consumes them.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"hrms/internal/platform/kafka/consumer"
	"hrms/pkg/events"
)

// Record is the dead-letter wire shape. OriginalValue carries the failed
// message verbatim so it can be replayed.
type Record struct {
	OriginalEventID string          `json:"original_event_id,omitempty"`
	OriginalTopic   string          `json:"original_topic"`
	OriginalKey     string          `json:"original_key,omitempty"`
	OriginalValue   json.RawMessage `json:"original_value"`
	FailureReason   string          `json:"failure_reason"`
	FailedAt        time.Time       `json:"failed_at"`
	ConsumerGroup   string          `json:"consumer_group"`
}

// Publisher is the slice of the delivery client dead-letter routing needs.
type Publisher interface {
	SendRaw(ctx context.Context, topic events.Topic, key string, value []byte) bool
}

// Router publishes dead-letter records via the delivery client, subject to
// the same bounded-retry semantics as any other send.
type Router struct {
	publisher Publisher
	group     string
	logger    *slog.Logger
}

// NewRouter creates a dead-letter router for the given consumer group.
func NewRouter(publisher Publisher, group string, logger *slog.Logger) *Router {
	return &Router{publisher: publisher, group: group, logger: logger}
}

// Route wraps the failed message and publishes it to <topic>-dlq. When even
// the dead-letter publish fails the error is logged and returned; the caller
// commits the original offset anyway, since wedging the group on a broker
// outage is judged worse than losing one message under this layer's
// at-least-once posture.
func (r *Router) Route(ctx context.Context, msg *consumer.Message, cause error) error {
	record := Record{
		OriginalTopic: msg.Topic,
		OriginalKey:   string(msg.Key),
		OriginalValue: json.RawMessage(msg.Value),
		FailureReason: cause.Error(),
		FailedAt:      time.Now().UTC(),
		ConsumerGroup: r.group,
	}

	// Best effort: pull the event id out of the original envelope so DLQ
	// consumers can correlate without re-parsing the payload.
	var probe struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(msg.Value, &probe); err == nil {
		record.OriginalEventID = probe.EventID
	} else {
		// Not valid JSON; wrap it so the record itself stays well formed.
		record.OriginalValue, _ = json.Marshal(string(msg.Value))
	}

	value, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("marshal dead-letter record", "error", err)
		return err
	}

	dlqTopic := events.Topic(msg.Topic).DLQ()
	if !r.publisher.SendRaw(ctx, dlqTopic, string(msg.Key), value) {
		r.logger.Error("dead-letter publish failed",
			"topic", dlqTopic,
			"original_event_id", record.OriginalEventID,
			"reason", record.FailureReason,
		)
		return errDeadLetterPublish
	}

	r.logger.Warn("message dead-lettered",
		"topic", dlqTopic,
		"original_event_id", record.OriginalEventID,
		"consumer_group", r.group,
		"reason", record.FailureReason,
	)
	return nil
}

var errDeadLetterPublish = errors.New("dead-letter publish failed")
