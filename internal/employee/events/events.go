// Package events emits the employee service's lifecycle events. All of them
// are fire-and-forget: the HR operation never waits on the broker.
package events

import (
	"context"
	"fmt"
	"log/slog"

	evt "hrms/pkg/events"
)

const source = "employee-management-service"

type Dispatcher interface {
	Deliver(ctx context.Context, env evt.Envelope) error
	Enqueue(ctx context.Context, env evt.Envelope)
}

// Employee carries the record fields events are built from.
type Employee struct {
	ID         int64
	UserID     int64
	Email      string
	FirstName  string
	LastName   string
	Department string
	Position   string
	Status     string
	HireDate   string
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

// Created also sends the onboarding email, which gets the synchronous
// fallback treatment: a new hire must receive it even during an outage.
func (e *Emitter) Created(ctx context.Context, emp Employee) error {
	env, err := evt.New(source, evt.NotificationRequested, evt.NotificationPayload{
		RecipientEmail: emp.Email,
		RecipientName:  emp.FirstName + " " + emp.LastName,
		Subject:        "Welcome to the team!",
		TemplateName:   "employee_onboarding",
		TemplateData: map[string]any{
			"first_name": emp.FirstName,
			"department": emp.Department,
			"position":   emp.Position,
		},
	})
	if err != nil {
		return fmt.Errorf("build onboarding notification: %w", err)
	}
	deliverErr := e.dispatch.Deliver(ctx, env)
	e.emit(ctx, evt.EmployeeCreated, emp, "")
	return deliverErr
}

func (e *Emitter) Updated(ctx context.Context, emp Employee) {
	e.emit(ctx, evt.EmployeeUpdated, emp, "")
}

func (e *Emitter) StatusChanged(ctx context.Context, emp Employee) {
	e.emit(ctx, evt.EmployeeStatusChanged, emp, "")
}

func (e *Emitter) Terminated(ctx context.Context, emp Employee, terminationDate string) {
	e.emit(ctx, evt.EmployeeTerminated, emp, terminationDate)
}

func (e *Emitter) emit(ctx context.Context, typ evt.Type, emp Employee, terminationDate string) {
	env, err := evt.New(source, typ, evt.EmployeePayload{
		EmployeeID:      emp.ID,
		UserID:          emp.UserID,
		Email:           emp.Email,
		FirstName:       emp.FirstName,
		LastName:        emp.LastName,
		Department:      emp.Department,
		Position:        emp.Position,
		Status:          emp.Status,
		HireDate:        emp.HireDate,
		TerminationDate: terminationDate,
	})
	if err != nil {
		e.logger.Error("building employee event failed", "event_type", typ, "error", err)
		return
	}
	e.dispatch.Enqueue(ctx, env)
}
