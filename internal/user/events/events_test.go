package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evt "hrms/pkg/events"
)

type recordingDispatcher struct {
	delivered  []evt.Envelope
	enqueued   []evt.Envelope
	deliverErr error
}

func (r *recordingDispatcher) Deliver(_ context.Context, env evt.Envelope) error {
	r.delivered = append(r.delivered, env)
	return r.deliverErr
}

func (r *recordingDispatcher) Enqueue(_ context.Context, env evt.Envelope) {
	r.enqueued = append(r.enqueued, env)
}

func newEmitter(t *testing.T, d Dispatcher) *Emitter {
	t.Helper()
	e, err := New(d, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return e
}

var testUser = User{
	ID:        42,
	Email:     "jane@company.com",
	FirstName: "Jane",
	LastName:  "Doe",
	Role:      "employee",
}

var testReq = RequestInfo{
	ActorID:   7,
	IPAddress: "10.0.0.5",
	UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

func TestNew_RequiresDispatcher(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestCreated_EmitsNotificationAuditAndLifecycle(t *testing.T) {
	d := &recordingDispatcher{}
	e := newEmitter(t, d)

	require.NoError(t, e.Created(context.Background(), testUser, testReq))

	require.Len(t, d.delivered, 2)
	notif, ok := d.delivered[0].Payload.(evt.NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, "jane@company.com", notif.RecipientEmail)
	assert.Equal(t, "Welcome to HRMS!", notif.Subject)
	assert.Equal(t, "account_created", notif.TemplateName)
	assert.Equal(t, "Jane", notif.TemplateData["first_name"])

	audit, ok := d.delivered[1].Payload.(evt.AuditPayload)
	require.True(t, ok)
	assert.Equal(t, int64(7), audit.UserID)
	assert.Equal(t, "CREATE", audit.Action)
	assert.Equal(t, "user", audit.ResourceType)
	assert.Equal(t, int64(42), audit.ResourceID)
	assert.Equal(t, "10.0.0.5", audit.IPAddress)
	assert.Equal(t, "Firefox on Linux x86_64", audit.UserAgent)

	require.Len(t, d.enqueued, 1)
	assert.Equal(t, evt.UserCreated, d.enqueued[0].EventType)
	assert.Equal(t, "user-42", d.enqueued[0].Key())
}

func TestCreated_DeliveryFailureStillEmitsLifecycle(t *testing.T) {
	d := &recordingDispatcher{deliverErr: errors.New("both paths down")}
	e := newEmitter(t, d)

	err := e.Created(context.Background(), testUser, testReq)
	require.Error(t, err)
	assert.Len(t, d.enqueued, 1)
}

func TestSuspended_CarriesReason(t *testing.T) {
	d := &recordingDispatcher{}
	e := newEmitter(t, d)

	require.NoError(t, e.Suspended(context.Background(), testUser, testReq, "policy violation"))

	notif := d.delivered[0].Payload.(evt.NotificationPayload)
	assert.Equal(t, "policy violation", notif.TemplateData["reason"])

	require.Len(t, d.enqueued, 1)
	lifecycle := d.enqueued[0].Payload.(evt.UserPayload)
	assert.Equal(t, "suspended", lifecycle.Status)
	assert.Equal(t, "policy violation", lifecycle.Reason)
}

func TestDeleted_AuditOnly(t *testing.T) {
	d := &recordingDispatcher{}
	e := newEmitter(t, d)

	require.NoError(t, e.Deleted(context.Background(), testUser, testReq))

	require.Len(t, d.delivered, 1)
	audit := d.delivered[0].Payload.(evt.AuditPayload)
	assert.Equal(t, "DELETE", audit.Action)
	require.Len(t, d.enqueued, 1)
	assert.Equal(t, evt.UserDeleted, d.enqueued[0].EventType)
}

func TestDescribeUserAgent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"firefox on linux", "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0", "Firefox on Linux x86_64"},
		{"googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "bot"},
		{"unparseable passes through", "my-custom-client/1.0", "my-custom-client/1.0"},
		{"browser name without an os passes through", "curl/8.5.0", "curl/8.5.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeUserAgent(tt.raw))
		})
	}
}
