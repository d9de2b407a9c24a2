// Package events emits the attendance service's events. Pure fire-and-forget:
// an attendance mark never waits on the broker and is never retried inline.
package events

import (
	"context"
	"fmt"
	"log/slog"

	evt "hrms/pkg/events"
)

const source = "attendance-service"

type Dispatcher interface {
	Enqueue(ctx context.Context, env evt.Envelope)
}

// Record carries the attendance fields events are built from.
type Record struct {
	ID            int64
	EmployeeID    int64
	EmployeeEmail string
	EmployeeName  string
	Date          string
	CheckIn       string
	CheckOut      string
	Status        string
	HoursWorked   float64
	Notes         string
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

func (e *Emitter) Marked(ctx context.Context, r Record)  { e.emit(ctx, evt.AttendanceMarked, r) }
func (e *Emitter) Updated(ctx context.Context, r Record) { e.emit(ctx, evt.AttendanceUpdated, r) }
func (e *Emitter) Deleted(ctx context.Context, r Record) { e.emit(ctx, evt.AttendanceDeleted, r) }

func (e *Emitter) emit(ctx context.Context, typ evt.Type, r Record) {
	env, err := evt.New(source, typ, evt.AttendancePayload{
		AttendanceID:  r.ID,
		EmployeeID:    r.EmployeeID,
		EmployeeEmail: r.EmployeeEmail,
		EmployeeName:  r.EmployeeName,
		Date:          r.Date,
		CheckIn:       r.CheckIn,
		CheckOut:      r.CheckOut,
		Status:        r.Status,
		HoursWorked:   r.HoursWorked,
		Notes:         r.Notes,
	})
	if err != nil {
		e.logger.Error("building attendance event failed", "event_type", typ, "error", err)
		return
	}
	e.dispatch.Enqueue(ctx, env)
}
