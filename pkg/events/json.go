package events

import (
	"encoding/json"
	"fmt"
)

// envelopeWire mirrors Envelope with the payload left raw so the variant can
// be chosen from the declared type. encoding/json ignores unknown fields,
// which is what keeps the format forward compatible.
type envelopeWire struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	OccurredAt    json.RawMessage `json:"occurred_at"`
	SourceService string          `json:"source_service"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Marshal serializes the envelope for publication.
func Marshal(e Envelope) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: envelope has no payload", ErrSchemaMismatch)
	}
	return json.Marshal(e)
}

// Unmarshal decodes an envelope, selecting the payload variant from the
// declared event type. A type whose payload fails validation, or an unknown
// type, yields ErrSchemaMismatch so consumers can reject the message without
// crashing.
func Unmarshal(data []byte) (Envelope, error) {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}

	fam, ok := w.EventType.Family()
	if !ok {
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", ErrSchemaMismatch, w.EventType)
	}
	if len(w.Payload) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing payload for %q", ErrSchemaMismatch, w.EventType)
	}

	payload, err := decodePayload(fam, w.Payload)
	if err != nil {
		return Envelope{}, err
	}

	e := Envelope{
		EventID:       w.EventID,
		EventType:     w.EventType,
		SourceService: w.SourceService,
		CorrelationID: w.CorrelationID,
		Payload:       payload,
	}
	if len(w.OccurredAt) > 0 {
		if err := json.Unmarshal(w.OccurredAt, &e.OccurredAt); err != nil {
			return Envelope{}, fmt.Errorf("decode occurred_at: %w", err)
		}
	}
	return e, nil
}

func decodePayload(fam Family, raw json.RawMessage) (Payload, error) {
	var payload Payload
	switch fam {
	case FamilyNotification:
		payload = &NotificationPayload{}
	case FamilyAudit:
		payload = &AuditPayload{}
	case FamilyUser:
		payload = &UserPayload{}
	case FamilyEmployee:
		payload = &EmployeePayload{}
	case FamilyLeave:
		payload = &LeavePayload{}
	case FamilyAttendance:
		payload = &AttendancePayload{}
	case FamilyCompliance:
		payload = &CompliancePayload{}
	default:
		return nil, fmt.Errorf("%w: no payload variant for family %q", ErrSchemaMismatch, fam)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s payload: %v", ErrSchemaMismatch, fam, err)
	}

	// Dereference so Envelope.Payload carries values, matching what New
	// produces and keeping Key() type switches simple.
	var v Payload
	switch p := payload.(type) {
	case *NotificationPayload:
		v = *p
	case *AuditPayload:
		v = *p
	case *UserPayload:
		v = *p
	case *EmployeePayload:
		v = *p
	case *LeavePayload:
		v = *p
	case *AttendancePayload:
		v = *p
	case *CompliancePayload:
		v = *p
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return v, nil
}
