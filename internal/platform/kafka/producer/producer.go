// Package producer implements the delivery client: a franz-go backed Kafka
// producer that converts broker unavailability into a boolean outcome instead
// of letting infrastructure errors climb into a business request's stack.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
	"hrms/pkg/platform/sentinel"
)

// Producer owns one broker session. The session is never shared across
// instances; share the Producer itself (it is safe for concurrent Send).
type Producer struct {
	cfg    *config.Kafka
	logger *slog.Logger

	mu      sync.Mutex
	client  *kgo.Client
	started bool
}

// Option configures the Producer.
type Option func(*Producer)

// WithLogger sets a logger for send reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// New creates a producer. The configuration is read once here; nothing is
// re-read per call.
func New(cfg *config.Kafka, opts ...Option) *Producer {
	p := &Producer{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// startAttempts bounds how many times Start pings the cluster before giving
// up and leaving the hosting service in degraded mode.
const startAttempts = 3

// Start establishes the broker session. It is idempotent. When the cluster is
// unreachable after bounded retries it returns an error wrapping
// sentinel.ErrConnection; callers are expected to log it and proceed without
// the async path rather than crash.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(p.cfg.Brokers...),
		kgo.ClientID(p.cfg.ClientID),
		kgo.RequiredAcks(kgo.LeaderAck()),
		kgo.DisableIdempotentWrite(),
		kgo.ProducerBatchCompression(kgo.Lz4Compression(), kgo.NoCompression()),
	)
	if err != nil {
		return fmt.Errorf("%w: build kafka client: %v", sentinel.ErrConnection, err)
	}

	var pingErr error
	for attempt := 0; attempt < startAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		pingErr = client.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}
		select {
		case <-ctx.Done():
			client.Close()
			return fmt.Errorf("%w: %v", sentinel.ErrConnection, ctx.Err())
		case <-time.After(p.cfg.SendBackoff << attempt):
		}
	}
	if pingErr != nil {
		client.Close()
		return fmt.Errorf("%w: ping brokers %v: %v", sentinel.ErrConnection, p.cfg.Brokers, pingErr)
	}

	p.client = client
	p.started = true
	p.logger.Info("kafka producer started",
		"brokers", p.cfg.Brokers,
		"client_id", p.cfg.ClientID,
	)
	return nil
}

// Started reports whether Start completed successfully.
func (p *Producer) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Send serializes the event and produces it to topic under the given
// partition key. A true return means the broker acknowledged receipt at the
// configured ack level, nothing more: no consumer has necessarily processed
// it, and duplicates remain possible. Broker unavailability is retried with
// backoff up to the configured bound, then reported as false at warn level.
func (p *Producer) Send(ctx context.Context, topic events.Topic, key string, event events.Envelope) bool {
	value, err := events.Marshal(event)
	if err != nil {
		p.logger.Error("event marshal failed, not sending",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err,
		)
		return false
	}
	ok := p.SendRaw(ctx, topic, key, value)
	if ok {
		p.logger.Info("event sent",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"key", key,
		)
	} else {
		p.logger.Warn("event send failed",
			"topic", topic,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"key", key,
		)
	}
	return ok
}

// SendRaw produces already-serialized bytes. Used by dead-letter routing,
// which publishes records rather than envelopes.
func (p *Producer) SendRaw(ctx context.Context, topic events.Topic, key string, value []byte) bool {
	p.mu.Lock()
	client, started := p.client, p.started
	p.mu.Unlock()

	if !started {
		p.logger.Error("send before start", "topic", topic)
		return false
	}

	record := &kgo.Record{
		Topic: topic.String(),
		Key:   []byte(key),
		Value: value,
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.SendRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		lastErr = client.ProduceSync(sendCtx, record).FirstErr()
		cancel()
		if lastErr == nil {
			return true
		}
		if attempt == p.cfg.SendRetries {
			break
		}
		select {
		case <-ctx.Done():
			p.logger.Warn("send cancelled", "topic", topic, "error", ctx.Err())
			return false
		case <-time.After(p.cfg.SendBackoff << attempt):
		}
	}

	p.logger.Warn("delivery exhausted",
		"topic", topic,
		"retries", p.cfg.SendRetries,
		"error", lastErr,
	)
	return false
}

// Stop flushes buffered sends and releases the session. Safe to call more
// than once.
func (p *Producer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flush on stop failed", "error", err)
	}
	p.client.Close()
	p.client = nil
	p.started = false
	p.logger.Info("kafka producer stopped")
	return nil
}

// shared is the process-wide producer for call sites that cannot thread a
// handle through. First construction is serialized by sync.Once so exactly
// one Start races to completion.
var (
	sharedOnce sync.Once
	sharedProd *Producer
	sharedErr  error
)

// Shared returns the process-wide producer, starting it on first use. Prefer
// explicit injection; this exists for the long tail of request-path call
// sites.
func Shared(ctx context.Context, cfg *config.Kafka, logger *slog.Logger) (*Producer, error) {
	sharedOnce.Do(func() {
		sharedProd = New(cfg, WithLogger(logger))
		sharedErr = sharedProd.Start(ctx)
	})
	return sharedProd, sharedErr
}
