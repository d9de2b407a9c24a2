package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Option tweaks an envelope at construction time.
type Option func(*Envelope)

// WithCorrelationID propagates an identifier across a causally related chain
// of events and requests.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithOccurredAt overrides the creation timestamp. Intended for replay and
// tests; normal call sites let New stamp the envelope.
func WithOccurredAt(ts time.Time) Option {
	return func(e *Envelope) { e.OccurredAt = ts }
}

// New constructs an immutable envelope. It fails with ErrSchemaMismatch when
// the payload variant does not belong to the event type's family, when the
// type is unknown, or when the payload is missing required fields. A failed
// construction never yields a partially valid envelope.
func New(sourceService string, typ Type, payload Payload, opts ...Option) (Envelope, error) {
	if sourceService == "" {
		return Envelope{}, fmt.Errorf("source service is required")
	}
	fam, ok := typ.Family()
	if !ok {
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", ErrSchemaMismatch, typ)
	}
	if payload == nil {
		return Envelope{}, fmt.Errorf("%w: nil payload for %q", ErrSchemaMismatch, typ)
	}
	if payload.Family() != fam {
		return Envelope{}, fmt.Errorf("%w: %q expects a %s payload, got %s",
			ErrSchemaMismatch, typ, fam, payload.Family())
	}
	if err := payload.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	e := Envelope{
		EventID:       uuid.New().String(),
		EventType:     typ,
		OccurredAt:    time.Now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

// Partition keys. All events for one entity must share a key so they land on
// one ordered sub-stream; the helpers below keep key derivation uniform
// across services.

func EmployeeKey(employeeID int64) string { return fmt.Sprintf("employee-%d", employeeID) }

func UserKey(userID int64) string { return fmt.Sprintf("user-%d", userID) }

// RecipientKey orders notifications per recipient address.
func RecipientKey(email string) string { return "recipient-" + email }

// Key derives the natural partition key for this envelope from its payload.
// Leave and attendance events key by employee so one employee's history stays
// ordered across event kinds.
func (e Envelope) Key() string {
	switch p := e.Payload.(type) {
	case UserPayload:
		return UserKey(p.UserID)
	case EmployeePayload:
		return EmployeeKey(p.EmployeeID)
	case LeavePayload:
		return EmployeeKey(p.EmployeeID)
	case AttendancePayload:
		return EmployeeKey(p.EmployeeID)
	case NotificationPayload:
		return RecipientKey(p.RecipientEmail)
	case AuditPayload:
		return UserKey(p.UserID)
	case CompliancePayload:
		return fmt.Sprintf("%s-%d", p.ResourceType, p.ResourceID)
	default:
		return e.EventID
	}
}
