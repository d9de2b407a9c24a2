// Package dispatch decides how a domain event leaves the service that
// produced it. Events whose effect a caller is waiting on (notifications,
// audit records) go through Deliver: async first, synchronous collaborator
// call when the async path is disabled or failing. Everything else goes
// through Enqueue: handed to a background pool, published best-effort, and
// dropped with a log line when the broker stays unreachable. The domain
// operation that emitted the event never fails because of the broker.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"hrms/pkg/events"
)

//go:generate mockgen -source=dispatch.go -destination=mocks/mocks.go -package=mocks Publisher,EmailSender,AuditLogger

// Publisher is the async delivery client. Send reports delivery with a bool
// so callers branch on outcome instead of unwrapping broker errors.
type Publisher interface {
	Started() bool
	Send(ctx context.Context, topic events.Topic, key string, event events.Envelope) bool
}

// EmailSender is the synchronous notification collaborator used when the
// async path cannot carry a notification event.
type EmailSender interface {
	SendEmail(ctx context.Context, p events.NotificationPayload) error
}

// AuditLogger is the synchronous audit collaborator used when the async path
// cannot carry an audit event.
type AuditLogger interface {
	LogAction(ctx context.Context, p events.AuditPayload) error
}

const (
	defaultQueueSize = 256
	defaultWorkers   = 2
)

type Dispatcher struct {
	publisher Publisher
	email     EmailSender
	audit     AuditLogger
	enabled   bool
	logger    *slog.Logger
	metrics   *Metrics

	queueSize int
	workers   int

	mu      sync.RWMutex
	queue   chan events.Envelope
	closed  bool
	started bool
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithEmailFallback wires the synchronous notification collaborator.
func WithEmailFallback(email EmailSender) Option {
	return func(d *Dispatcher) { d.email = email }
}

// WithAuditFallback wires the synchronous audit collaborator.
func WithAuditFallback(audit AuditLogger) Option {
	return func(d *Dispatcher) { d.audit = audit }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithAsyncEnabled controls whether the async path is attempted at all.
// When false every fallback-eligible event goes straight to its collaborator
// and fire-and-forget events are dropped at enqueue time.
func WithAsyncEnabled(enabled bool) Option {
	return func(d *Dispatcher) { d.enabled = enabled }
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func New(publisher Publisher, opts ...Option) (*Dispatcher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	d := &Dispatcher{
		publisher: publisher,
		enabled:   true,
		logger:    slog.Default(),
		queueSize: defaultQueueSize,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start spins up the background publish pool. Idempotent.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.queue = make(chan events.Envelope, d.queueSize)
	d.started = true
	d.closed = false
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Close stops accepting fire-and-forget events, drains the queue, and waits
// for in-flight publishes. ctx bounds the wait.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch drain interrupted: %w", ctx.Err())
	}
}

// Deliver carries an event whose side effect the caller is waiting on.
// The async path is tried first; if it is disabled, the delivery client is
// not running, or the broker rejects the event, the synchronous collaborator
// performs the same side effect. An error means neither path worked and the
// side effect did not happen.
func (d *Dispatcher) Deliver(ctx context.Context, env events.Envelope) error {
	env = d.correlate(ctx, env)

	if d.enabled {
		topic, ok := env.EventType.Topic()
		if ok && d.publisher.Started() && d.publisher.Send(ctx, topic, env.Key(), env) {
			d.metrics.asyncDelivered("ok")
			return nil
		}
		d.metrics.asyncDelivered("failed")
	}
	return d.fallback(ctx, env)
}

// Enqueue hands an event to the background pool and returns immediately.
// A full queue, a closed dispatcher, or a broker failure in the pool all
// reduce to a log line: the caller's operation already succeeded.
func (d *Dispatcher) Enqueue(ctx context.Context, env events.Envelope) {
	env = d.correlate(ctx, env)

	if !d.enabled {
		d.drop(env, "async delivery disabled")
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started || d.closed {
		d.drop(env, "dispatcher not running")
		return
	}
	select {
	case d.queue <- env:
		d.metrics.queueDepth(len(d.queue))
	default:
		d.drop(env, "queue full")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for env := range d.queue {
		d.metrics.queueDepth(len(d.queue))
		topic, ok := env.EventType.Topic()
		if !ok {
			d.drop(env, "no topic for event type")
			continue
		}
		if !d.publisher.Send(context.Background(), topic, env.Key(), env) {
			d.drop(env, "broker unavailable")
			continue
		}
		d.metrics.asyncDelivered("ok")
	}
}

func (d *Dispatcher) fallback(ctx context.Context, env events.Envelope) error {
	switch p := env.Payload.(type) {
	case events.NotificationPayload:
		if d.email == nil {
			return fmt.Errorf("notification %s to %s not delivered: async path unavailable and no sync collaborator configured", env.EventType, p.RecipientEmail)
		}
		if err := d.email.SendEmail(ctx, p); err != nil {
			d.metrics.fallbackCalled("failed")
			return fmt.Errorf("notification %s to %s not delivered: %w", env.EventType, p.RecipientEmail, err)
		}
		d.metrics.fallbackCalled("ok")
		d.logger.Info("event delivered via sync fallback",
			"event_id", env.EventID, "event_type", env.EventType)
		return nil
	case events.AuditPayload:
		if d.audit == nil {
			return fmt.Errorf("audit record %s for user %d not written: async path unavailable and no sync collaborator configured", env.EventType, p.UserID)
		}
		if err := d.audit.LogAction(ctx, p); err != nil {
			d.metrics.fallbackCalled("failed")
			return fmt.Errorf("audit record %s for user %d not written: %w", env.EventType, p.UserID, err)
		}
		d.metrics.fallbackCalled("ok")
		d.logger.Info("event delivered via sync fallback",
			"event_id", env.EventID, "event_type", env.EventType)
		return nil
	default:
		return fmt.Errorf("event %s not delivered: no sync collaborator exists for this event type", env.EventType)
	}
}

func (d *Dispatcher) drop(env events.Envelope, reason string) {
	d.metrics.dropped()
	d.logger.Warn("dropping fire-and-forget event",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"reason", reason)
}

// correlate fills an empty correlation id from the active trace so consumers
// can tie the event back to the originating request.
func (d *Dispatcher) correlate(ctx context.Context, env events.Envelope) events.Envelope {
	if env.CorrelationID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			env.CorrelationID = sc.TraceID().String()
		}
	}
	return env
}
