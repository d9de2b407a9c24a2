// Package events emits the leave service's events: fire-and-forget leave
// state changes keyed by employee, plus decision emails for the employee.
package events

import (
	"context"
	"fmt"
	"log/slog"

	evt "hrms/pkg/events"
)

const source = "leave-management-service"

type Dispatcher interface {
	Deliver(ctx context.Context, env evt.Envelope) error
	Enqueue(ctx context.Context, env evt.Envelope)
}

// Leave carries the request fields events are built from.
type Leave struct {
	ID            int64
	EmployeeID    int64
	EmployeeEmail string
	EmployeeName  string
	Type          string
	StartDate     string
	EndDate       string
	Days          int
	Reason        string
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

func (e *Emitter) Requested(ctx context.Context, l Leave) {
	e.emit(ctx, evt.LeaveRequested, l, "pending", "", "")
}

// Approved emits the state change and the decision email. The email gets the
// synchronous fallback treatment.
func (e *Emitter) Approved(ctx context.Context, l Leave, approvedBy string) error {
	e.emit(ctx, evt.LeaveApproved, l, "approved", approvedBy, "")
	return e.decisionEmail(ctx, l, "Your leave request was approved", "leave_approved",
		map[string]any{"approved_by": approvedBy})
}

// Rejected emits the state change and the decision email.
func (e *Emitter) Rejected(ctx context.Context, l Leave, rejectedBy, reason string) error {
	e.emit(ctx, evt.LeaveRejected, l, "rejected", rejectedBy, reason)
	return e.decisionEmail(ctx, l, "Your leave request was rejected", "leave_rejected",
		map[string]any{"rejected_by": rejectedBy, "reason": reason})
}

func (e *Emitter) Cancelled(ctx context.Context, l Leave) {
	e.emit(ctx, evt.LeaveCancelled, l, "cancelled", "", "")
}

func (e *Emitter) Updated(ctx context.Context, l Leave, status string) {
	e.emit(ctx, evt.LeaveUpdated, l, status, "", "")
}

func (e *Emitter) emit(ctx context.Context, typ evt.Type, l Leave, status, decidedBy, rejectionReason string) {
	env, err := evt.New(source, typ, evt.LeavePayload{
		LeaveID:         l.ID,
		EmployeeID:      l.EmployeeID,
		EmployeeEmail:   l.EmployeeEmail,
		EmployeeName:    l.EmployeeName,
		LeaveType:       l.Type,
		StartDate:       l.StartDate,
		EndDate:         l.EndDate,
		Days:            l.Days,
		Status:          status,
		Reason:          l.Reason,
		ApprovedBy:      decidedBy,
		RejectionReason: rejectionReason,
	})
	if err != nil {
		e.logger.Error("building leave event failed", "event_type", typ, "error", err)
		return
	}
	e.dispatch.Enqueue(ctx, env)
}

func (e *Emitter) decisionEmail(ctx context.Context, l Leave, subject, template string, data map[string]any) error {
	data["leave_type"] = l.Type
	data["start_date"] = l.StartDate
	data["end_date"] = l.EndDate
	data["days"] = l.Days
	env, err := evt.New(source, evt.NotificationRequested, evt.NotificationPayload{
		RecipientEmail: l.EmployeeEmail,
		RecipientName:  l.EmployeeName,
		Subject:        subject,
		TemplateName:   template,
		TemplateData:   data,
	})
	if err != nil {
		return fmt.Errorf("build decision notification: %w", err)
	}
	return e.dispatch.Deliver(ctx, env)
}
