// Package events emits the compliance service's events. Pure fire-and-forget:
// a compliance check never waits on the broker and is never retried inline.
package events

import (
	"context"
	"fmt"
	"log/slog"

	evt "hrms/pkg/events"
)

const source = "compliance-service"

type Dispatcher interface {
	Enqueue(ctx context.Context, env evt.Envelope)
}

// Check carries the compliance check fields events are built from.
type Check struct {
	ID              int64
	CheckType       string
	ResourceType    string
	ResourceID      int64
	Status          string
	Violations      []string
	Recommendations []string
	Severity        string
}

type Emitter struct {
	dispatch Dispatcher
	logger   *slog.Logger
}

type Option func(*Emitter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) { e.logger = logger }
}

func New(dispatch Dispatcher, opts ...Option) (*Emitter, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	e := &Emitter{dispatch: dispatch, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Emitter) Violation(ctx context.Context, c Check) { e.emit(ctx, evt.ComplianceViolation, c) }
func (e *Emitter) Alert(ctx context.Context, c Check)     { e.emit(ctx, evt.ComplianceAlert, c) }

func (e *Emitter) CheckCompleted(ctx context.Context, c Check) {
	e.emit(ctx, evt.ComplianceCheckCompleted, c)
}

func (e *Emitter) emit(ctx context.Context, typ evt.Type, c Check) {
	env, err := evt.New(source, typ, evt.CompliancePayload{
		ComplianceCheckID: c.ID,
		CheckType:         c.CheckType,
		ResourceType:      c.ResourceType,
		ResourceID:        c.ResourceID,
		Status:            c.Status,
		Violations:        c.Violations,
		Recommendations:   c.Recommendations,
		Severity:          c.Severity,
	})
	if err != nil {
		e.logger.Error("building compliance event failed", "event_type", typ, "error", err)
		return
	}
	e.dispatch.Enqueue(ctx, env)
}
