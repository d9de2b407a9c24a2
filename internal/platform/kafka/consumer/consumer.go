// Package consumer implements the intake client: a franz-go consumer group
// wrapper that delivers messages to handlers one at a time or in bounded
// batches, routes handler failures to dead-letter topics, and commits offsets
// only after a message has been handled or dead-lettered (at-least-once).
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"hrms/internal/platform/config"
	"hrms/pkg/platform/sentinel"
)

// Message is the unit handed to handlers. Value holds the serialized event
// envelope; Key is the partition key it was published under.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte

	record *kgo.Record
}

// Handler processes one message. A returned error routes the message to the
// dead-letter topic; it never stops the consumer loop.
type Handler func(ctx context.Context, msg *Message) error

// BatchHandler processes up to batch-size messages at once. A returned error
// dead-letters every message in the batch individually.
type BatchHandler func(ctx context.Context, msgs []*Message) error

// DeadLetterer routes a failed message to its dead-letter destination.
type DeadLetterer interface {
	Route(ctx context.Context, msg *Message, cause error) error
}

// State tracks the consumer lifecycle.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// source abstracts the underlying group session so the loop logic is testable
// without a broker.
type source interface {
	poll(ctx context.Context, max int) ([]*kgo.Record, error)
	commit(ctx context.Context, recs ...*kgo.Record) error
	close()
}

// Consumer subscribes to topics under a named group. The underlying session
// is owned exclusively by this instance.
type Consumer struct {
	cfg    *config.Kafka
	topics []string
	dlq    DeadLetterer
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	src    source
	cancel context.CancelFunc
	done   chan struct{}

	newSource func() (source, error)
}

// Option configures the Consumer.
type Option func(*Consumer)

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// WithDeadLetterer sets the dead-letter route for handler failures. Without
// one, failed messages are logged and committed.
func WithDeadLetterer(d DeadLetterer) Option {
	return func(c *Consumer) { c.dlq = d }
}

// New creates a consumer for the given topics under cfg.GroupID.
func New(cfg *config.Kafka, topics []string, opts ...Option) *Consumer {
	c := &Consumer{
		cfg:    cfg,
		topics: topics,
		logger: slog.Default(),
	}
	c.newSource = c.dialSource
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) dialSource() (source, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(c.cfg.Brokers...),
		kgo.ClientID(c.cfg.ClientID),
		kgo.ConsumerGroup(c.cfg.GroupID),
		kgo.ConsumeTopics(c.topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: build kafka client: %v", sentinel.ErrConnection, err)
	}
	return &kgoSource{client: client, logger: c.logger}, nil
}

type kgoSource struct {
	client *kgo.Client
	logger *slog.Logger
}

func (s *kgoSource) poll(ctx context.Context, max int) ([]*kgo.Record, error) {
	fetches := s.client.PollRecords(ctx, max)
	if fetches.IsClientClosed() {
		return nil, sentinel.ErrConnection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []*kgo.Record
	fetches.EachError(func(topic string, partition int32, err error) {
		// Fetch errors are transient; the group rejoins on its own.
		s.logger.Warn("fetch error", "topic", topic, "partition", partition, "error", err)
	})
	fetches.EachRecord(func(r *kgo.Record) { recs = append(recs, r) })
	return recs, nil
}

func (s *kgoSource) commit(ctx context.Context, recs ...*kgo.Record) error {
	return s.client.CommitRecords(ctx, recs...)
}

func (s *kgoSource) close() { s.client.Close() }

// Start establishes the group session. Idempotent; a consumer that failed to
// start stays Stopped.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStopped {
		return nil
	}
	c.state = StateStarting

	src, err := c.newSource()
	if err != nil {
		c.state = StateStopped
		return err
	}
	c.src = src
	c.state = StateRunning
	c.logger.Info("kafka consumer started",
		"group", c.cfg.GroupID,
		"topics", c.topics,
	)
	return nil
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop halts consumption and releases the session. It is safe to call
// concurrently with an in-flight iteration: the current message or batch
// finishes before the connection is released.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel, done, src := c.cancel, c.done, c.src
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn("stop timed out waiting for in-flight work")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if src != nil {
		src.close()
	}
	c.src = nil
	c.cancel = nil
	c.done = nil
	c.state = StateStopped
	c.logger.Info("kafka consumer stopped", "group", c.cfg.GroupID)
	return nil
}

// beginLoop registers a running loop so Stop can interrupt it and hands the
// loop its session, so the loop never races Stop for c.src.
func (c *Consumer) beginLoop(ctx context.Context) (context.Context, source, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return nil, nil, nil, fmt.Errorf("%w: consumer is %s", sentinel.ErrNotStarted, c.state)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	return loopCtx, c.src, func() { cancel(); close(done) }, nil
}

// Consume pulls one message at a time and invokes handler. A handler error
// routes the message to the dead-letter destination and the loop continues;
// the offset is committed only after successful handling or successful
// dead-letter routing, never before. Runs until Stop or ctx cancellation.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	loopCtx, src, finish, err := c.beginLoop(ctx)
	if err != nil {
		return err
	}
	defer finish()

	for {
		recs, err := src.poll(loopCtx, 1)
		if err != nil {
			return c.loopExit(err)
		}
		for _, rec := range recs {
			msg := fromRecord(rec)
			if err := c.handleOne(ctx, msg, handler); err != nil {
				// Dead-letter routing itself failed; commit anyway so one
				// broker outage cannot wedge the whole group.
				c.logger.Error("dead-letter routing failed, committing anyway",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"error", err,
				)
			}
			if err := src.commit(ctx, rec); err != nil {
				c.logger.Warn("offset commit failed, message may be redelivered",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

// handleOne invokes the handler and routes failures to the DLQ. The returned
// error is non-nil only when dead-letter routing itself failed.
func (c *Consumer) handleOne(ctx context.Context, msg *Message, handler Handler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}
	c.logger.Error("handler failed",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
	if c.dlq == nil {
		return nil
	}
	return c.dlq.Route(ctx, msg, err)
}

// ConsumeBatch accumulates up to batchSize messages or waits at most the
// configured batch window, whichever triggers first, then invokes handler
// once. On handler error the whole batch is dead-lettered individually so one
// poisoned message cannot silently discard the rest. Offsets commit after the
// batch is handled or dead-lettered.
func (c *Consumer) ConsumeBatch(ctx context.Context, handler BatchHandler, batchSize int) error {
	if batchSize <= 0 {
		batchSize = c.cfg.BatchSize
	}
	loopCtx, src, finish, err := c.beginLoop(ctx)
	if err != nil {
		return err
	}
	defer finish()

	for {
		batch, err := c.gatherBatch(loopCtx, src, batchSize)
		if err != nil {
			return c.loopExit(err)
		}
		if len(batch) == 0 {
			continue
		}

		if err := handler(ctx, batch); err != nil {
			c.logger.Error("batch handler failed",
				"size", len(batch),
				"error", err,
			)
			for _, msg := range batch {
				if c.dlq == nil {
					continue
				}
				if dlqErr := c.dlq.Route(ctx, msg, err); dlqErr != nil {
					c.logger.Error("dead-letter routing failed, committing anyway",
						"topic", msg.Topic,
						"offset", msg.Offset,
						"error", dlqErr,
					)
				}
			}
		}

		recs := make([]*kgo.Record, len(batch))
		for i, msg := range batch {
			recs[i] = msg.record
		}
		if err := src.commit(ctx, recs...); err != nil {
			c.logger.Warn("batch offset commit failed, batch may be redelivered",
				"size", len(batch),
				"error", err,
			)
		}
	}
}

// gatherBatch polls until the batch is full or the window elapses. A window
// that expires with an empty batch returns an empty slice, not an error.
func (c *Consumer) gatherBatch(ctx context.Context, src source, batchSize int) ([]*Message, error) {
	windowCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchWindow)
	defer cancel()

	var batch []*Message
	for len(batch) < batchSize {
		recs, err := src.poll(windowCtx, batchSize-len(batch))
		if err != nil {
			// Window expiry is a normal partial-batch trigger.
			if windowCtx.Err() != nil && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		for _, rec := range recs {
			batch = append(batch, fromRecord(rec))
		}
	}
	return batch, nil
}

// loopExit normalizes loop termination: cancellation from Stop is a clean
// shutdown, anything else propagates.
func (c *Consumer) loopExit(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func fromRecord(rec *kgo.Record) *Message {
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		record:    rec,
	}
}
