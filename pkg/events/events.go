// Package events defines the shared event envelope and per-domain payloads
// published by every HRMS service. The envelope is immutable once created:
// construct it through New, never by mutating fields after the fact.
//
// Serialization is JSON and forward compatible. Unknown fields are ignored on
// decode so producers and consumers can be upgraded independently. A payload
// whose shape disagrees with the declared event type is rejected with
// ErrSchemaMismatch, never a panic.
package events

import (
	"errors"
	"time"
)

// ErrSchemaMismatch reports a payload that does not match the declared event
// type. This is a programmer error: it is never retried.
var ErrSchemaMismatch = errors.New("event payload does not match event type")

// Family groups event types by the payload variant they carry.
type Family string

const (
	FamilyNotification Family = "notification"
	FamilyAudit        Family = "audit"
	FamilyUser         Family = "user"
	FamilyEmployee     Family = "employee"
	FamilyLeave        Family = "leave"
	FamilyAttendance   Family = "attendance"
	FamilyCompliance   Family = "compliance"
)

// Type is the closed enumeration of event kinds. It drives payload selection,
// topic routing, and handler dispatch on the consumer side.
type Type string

const (
	// User events
	UserCreated         Type = "user.created"
	UserUpdated         Type = "user.updated"
	UserDeleted         Type = "user.deleted"
	UserSuspended       Type = "user.suspended"
	UserActivated       Type = "user.activated"
	UserPasswordChanged Type = "user.password_changed"

	// Employee events
	EmployeeCreated       Type = "employee.created"
	EmployeeUpdated       Type = "employee.updated"
	EmployeeTerminated    Type = "employee.terminated"
	EmployeeStatusChanged Type = "employee.status_changed"

	// Leave events
	LeaveRequested Type = "leave.requested"
	LeaveApproved  Type = "leave.approved"
	LeaveRejected  Type = "leave.rejected"
	LeaveCancelled Type = "leave.cancelled"
	LeaveUpdated   Type = "leave.updated"

	// Attendance events
	AttendanceMarked  Type = "attendance.marked"
	AttendanceUpdated Type = "attendance.updated"
	AttendanceDeleted Type = "attendance.deleted"

	// Compliance events
	ComplianceViolation      Type = "compliance.violation"
	ComplianceAlert          Type = "compliance.alert"
	ComplianceCheckCompleted Type = "compliance.check_completed"

	// Audit events
	AuditUserAction       Type = "audit.user.action"
	AuditEmployeeAction   Type = "audit.employee.action"
	AuditLeaveAction      Type = "audit.leave.action"
	AuditAttendanceAction Type = "audit.attendance.action"
	AuditComplianceAction Type = "audit.compliance.action"

	// Notification events reuse the lifecycle type that triggered them; the
	// family is what selects a NotificationPayload.
	NotificationRequested Type = "notification.requested"
)

// typeFamilies maps every known event type to its payload family.
// An entry here is what makes a Type valid; New rejects anything else.
var typeFamilies = map[Type]Family{
	UserCreated:         FamilyUser,
	UserUpdated:         FamilyUser,
	UserDeleted:         FamilyUser,
	UserSuspended:       FamilyUser,
	UserActivated:       FamilyUser,
	UserPasswordChanged: FamilyUser,

	EmployeeCreated:       FamilyEmployee,
	EmployeeUpdated:       FamilyEmployee,
	EmployeeTerminated:    FamilyEmployee,
	EmployeeStatusChanged: FamilyEmployee,

	LeaveRequested: FamilyLeave,
	LeaveApproved:  FamilyLeave,
	LeaveRejected:  FamilyLeave,
	LeaveCancelled: FamilyLeave,
	LeaveUpdated:   FamilyLeave,

	AttendanceMarked:  FamilyAttendance,
	AttendanceUpdated: FamilyAttendance,
	AttendanceDeleted: FamilyAttendance,

	ComplianceViolation:      FamilyCompliance,
	ComplianceAlert:          FamilyCompliance,
	ComplianceCheckCompleted: FamilyCompliance,

	AuditUserAction:       FamilyAudit,
	AuditEmployeeAction:   FamilyAudit,
	AuditLeaveAction:      FamilyAudit,
	AuditAttendanceAction: FamilyAudit,
	AuditComplianceAction: FamilyAudit,

	NotificationRequested: FamilyNotification,
}

// Family returns the payload family for this event type and whether the type
// is known at all.
func (t Type) Family() (Family, bool) {
	f, ok := typeFamilies[t]
	return f, ok
}

// familyTopics maps each payload family to its durable topic. Each topic has
// a fixed-convention dead-letter counterpart (see Topic.DLQ).
var familyTopics = map[Family]Topic{
	FamilyNotification: TopicNotification,
	FamilyAudit:        TopicAudit,
	FamilyUser:         TopicUser,
	FamilyEmployee:     TopicEmployee,
	FamilyLeave:        TopicLeave,
	FamilyAttendance:   TopicAttendance,
	FamilyCompliance:   TopicCompliance,
}

// Topic is a named durable channel events are published to.
type Topic string

const (
	TopicNotification Topic = "notification-queue"
	TopicAudit        Topic = "audit-queue"
	TopicUser         Topic = "user-queue"
	TopicEmployee     Topic = "employee-queue"
	TopicLeave        Topic = "leave-queue"
	TopicAttendance   Topic = "attendance-queue"
	TopicCompliance   Topic = "compliance-queue"
)

// DLQ returns the dead-letter counterpart of this topic.
func (t Topic) DLQ() Topic { return t + "-dlq" }

func (t Topic) String() string { return string(t) }

// Topics lists every domain topic, without DLQ counterparts.
func Topics() []Topic {
	return []Topic{
		TopicNotification, TopicAudit, TopicUser, TopicEmployee,
		TopicLeave, TopicAttendance, TopicCompliance,
	}
}

// Topic returns the topic the given event type is published to.
func (t Type) Topic() (Topic, bool) {
	fam, ok := typeFamilies[t]
	if !ok {
		return "", false
	}
	return familyTopics[fam], true
}

// Envelope is the wire-level event record shared by all producers and
// consumers. Fields are exported for serialization but an Envelope should be
// treated as immutable once constructed.
type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     Type      `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	SourceService string    `json:"source_service"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Payload       Payload   `json:"payload"`
}

// Payload is implemented by every per-family payload variant.
type Payload interface {
	// Family identifies which variant this is.
	Family() Family
	// Validate reports whether required fields are present. Returning an
	// error makes construction and decoding fail with ErrSchemaMismatch.
	Validate() error
}
