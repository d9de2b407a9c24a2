// Package events emits the user service's domain events. Account lifecycle
// notifications and audit records are delivered with a synchronous fallback
// so they survive a broker outage; the lifecycle events other services
// subscribe to are fire-and-forget.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mssola/useragent"

	evt "hrms/pkg/events"
)

const source = "user-management-service"

// Dispatcher is the slice of the delivery policy this shim needs.
type Dispatcher interface {
	Deliver(ctx context.Context, env evt.Envelope) error
	Enqueue(ctx context.Context, env evt.Envelope)
}

// User carries the account fields events are built from.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// RequestInfo captures where a user action came from, for audit records.
type RequestInfo struct {
	ActorID   int64
	IPAddress string
	UserAgent string
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

// Created emits the welcome email, the audit record, and the user.created
// lifecycle event. The returned error covers only the first two: the
// lifecycle event is fire-and-forget.
func (e *Emitter) Created(ctx context.Context, u User, req RequestInfo) error {
	err := errors.Join(
		e.notify(ctx, u, "Welcome to HRMS!", "account_created", nil),
		e.auditRecord(ctx, u, req, "CREATE", "user account created"),
	)
	e.lifecycle(ctx, evt.UserCreated, u, "active", "")
	return err
}

// Suspended emits the suspension notice, the audit record, and the
// user.suspended lifecycle event.
func (e *Emitter) Suspended(ctx context.Context, u User, req RequestInfo, reason string) error {
	err := errors.Join(
		e.notify(ctx, u, "Your HRMS account has been suspended", "account_suspended",
			map[string]any{"reason": reason}),
		e.auditRecord(ctx, u, req, "SUSPEND", "user account suspended: "+reason),
	)
	e.lifecycle(ctx, evt.UserSuspended, u, "suspended", reason)
	return err
}

// Activated emits the reactivation notice and the user.activated event.
func (e *Emitter) Activated(ctx context.Context, u User, req RequestInfo) error {
	err := errors.Join(
		e.notify(ctx, u, "Your HRMS account has been reactivated", "account_activated", nil),
		e.auditRecord(ctx, u, req, "ACTIVATE", "user account reactivated"),
	)
	e.lifecycle(ctx, evt.UserActivated, u, "active", "")
	return err
}

// Deleted emits the audit record and the user.deleted lifecycle event.
// No notification goes out for a deleted account.
func (e *Emitter) Deleted(ctx context.Context, u User, req RequestInfo) error {
	err := e.auditRecord(ctx, u, req, "DELETE", "user account deleted")
	e.lifecycle(ctx, evt.UserDeleted, u, "deleted", "")
	return err
}

// PasswordChanged emits the security notice and the audit record.
func (e *Emitter) PasswordChanged(ctx context.Context, u User, req RequestInfo) error {
	err := errors.Join(
		e.notify(ctx, u, "Your HRMS password was changed", "password_changed", nil),
		e.auditRecord(ctx, u, req, "UPDATE", "user password changed"),
	)
	e.lifecycle(ctx, evt.UserPasswordChanged, u, "active", "")
	return err
}

func (e *Emitter) notify(ctx context.Context, u User, subject, template string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	data["first_name"] = u.FirstName
	data["last_name"] = u.LastName
	env, err := evt.New(source, evt.NotificationRequested, evt.NotificationPayload{
		RecipientEmail: u.Email,
		RecipientName:  u.FirstName + " " + u.LastName,
		Subject:        subject,
		TemplateName:   template,
		TemplateData:   data,
	})
	if err != nil {
		return fmt.Errorf("build notification event: %w", err)
	}
	return e.dispatch.Deliver(ctx, env)
}

func (e *Emitter) auditRecord(ctx context.Context, u User, req RequestInfo, action, description string) error {
	env, err := evt.New(source, evt.AuditUserAction, evt.AuditPayload{
		UserID:       req.ActorID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   u.ID,
		Description:  description,
		IPAddress:    req.IPAddress,
		UserAgent:    DescribeUserAgent(req.UserAgent),
	})
	if err != nil {
		return fmt.Errorf("build audit event: %w", err)
	}
	return e.dispatch.Deliver(ctx, env)
}

func (e *Emitter) lifecycle(ctx context.Context, typ evt.Type, u User, status, reason string) {
	env, err := evt.New(source, typ, evt.UserPayload{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Status:    status,
		Reason:    reason,
	})
	if err != nil {
		e.logger.Error("building lifecycle event failed", "event_type", typ, "error", err)
		return
	}
	e.dispatch.Enqueue(ctx, env)
}

// DescribeUserAgent turns a raw User-Agent header into the short
// "Firefox on Linux" form stored in audit records. The parser tokenizes
// almost anything into a browser name, so a string is only considered
// recognized when an operating system was identified too; otherwise the raw
// header passes through unchanged.
func DescribeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" || os == "" {
		return raw
	}
	return name + " on " + os
}
