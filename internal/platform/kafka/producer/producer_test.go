package producer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
	"hrms/pkg/platform/sentinel"
)

func testConfig() *config.Kafka {
	return &config.Kafka{
		Brokers:     []string{"127.0.0.1:1"}, // nothing listens here
		ClientID:    "test-producer",
		SendRetries: 1,
		SendBackoff: time.Millisecond,
		SendTimeout: 100 * time.Millisecond,
		BatchSize:   100,
		BatchWindow: time.Second,
	}
}

func newTestProducer() *Producer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(), WithLogger(logger))
}

func testEnvelopes(t *testing.T) []events.Envelope {
	t.Helper()
	specs := []struct {
		typ     events.Type
		payload events.Payload
	}{
		{events.UserCreated, events.UserPayload{UserID: 1, Email: "a@b.c"}},
		{events.EmployeeCreated, events.EmployeePayload{EmployeeID: 1, Email: "a@b.c"}},
		{events.LeaveApproved, events.LeavePayload{LeaveID: 1, EmployeeID: 1, LeaveType: "annual"}},
		{events.AttendanceMarked, events.AttendancePayload{AttendanceID: 1, EmployeeID: 1, Date: "2026-08-29", Status: "present"}},
		{events.AuditUserAction, events.AuditPayload{UserID: 1, Action: "CREATE", ResourceType: "user"}},
		{events.NotificationRequested, events.NotificationPayload{RecipientEmail: "a@b.c", Subject: "s", TemplateName: "t"}},
		{events.ComplianceAlert, events.CompliancePayload{CheckType: "c", ResourceType: "r"}},
	}
	out := make([]events.Envelope, 0, len(specs))
	for _, s := range specs {
		e, err := events.New("test-service", s.typ, s.payload)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestProducer_SendBeforeStartReturnsFalse(t *testing.T) {
	p := newTestProducer()
	for _, e := range testEnvelopes(t) {
		topic, _ := e.EventType.Topic()
		ok := p.Send(context.Background(), topic, e.Key(), e)
		assert.False(t, ok, "send must report failure, not panic, for %s", e.EventType)
	}
}

func TestProducer_StartUnreachableBroker(t *testing.T) {
	p := newTestProducer()
	err := p.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrConnection)
	assert.False(t, p.Started(), "failed start leaves the producer unstarted")
}

func TestProducer_StopWithoutStart(t *testing.T) {
	p := newTestProducer()
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
}
