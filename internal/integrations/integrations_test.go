package integrations

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrms/internal/platform/config"
	"hrms/pkg/events"
	"hrms/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fallbackConfig(notificationURL, auditURL string) *config.Fallback {
	return &config.Fallback{
		NotificationURL: notificationURL,
		AuditURL:        auditURL,
		RequestTimeout:  2 * time.Second,
		SigningKey:      "test-signing-key",
	}
}

func TestNotificationClient_SendEmail(t *testing.T) {
	var calls atomic.Int32
	var gotBody emailRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/api/v1/notifications/email", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewNotificationClient(fallbackConfig(srv.URL, ""), "user-management-service", discardLogger())
	err := c.SendEmail(context.Background(), events.NotificationPayload{
		RecipientEmail: "jane@company.com",
		Subject:        "Welcome to HRMS!",
		TemplateName:   "account_created",
		TemplateData:   map[string]any{"first_name": "Jane"},
	})
	require.NoError(t, err)

	// Exactly one call carrying the same content the event would have.
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "jane@company.com", gotBody.To)
	assert.Equal(t, "Welcome to HRMS!", gotBody.Subject)
	assert.Equal(t, "account_created", gotBody.Template)
	assert.Equal(t, "Jane", gotBody.Data["first_name"])

	// Bearer token is a valid HS256 service token naming the caller.
	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "),
		&jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return []byte("test-signing-key"), nil })
	require.NoError(t, err)
	claims := token.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "user-management-service", claims.Issuer)
}

func TestAuditClient_LogAction(t *testing.T) {
	var gotBody auditLogRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/audit-logs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewAuditClient(fallbackConfig("", srv.URL), "user-management-service", discardLogger())
	err := c.LogAction(context.Background(), events.AuditPayload{
		UserID:       7,
		Action:       "DELETE",
		ResourceType: "user",
		ResourceID:   42,
		Description:  "user deleted",
		UserAgent:    "Firefox on Linux",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), gotBody.UserID)
	assert.Equal(t, "DELETE", gotBody.Action)
	assert.Equal(t, "user", gotBody.ResourceType)
	assert.Equal(t, "Firefox on Linux", gotBody.UserAgent)
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAuditClient(fallbackConfig("", srv.URL), "svc", discardLogger())
	err := c.LogAction(context.Background(), events.AuditPayload{
		UserID: 1, Action: "CREATE", ResourceType: "user",
	})
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestClient_UnconfiguredEndpoint(t *testing.T) {
	c := NewNotificationClient(fallbackConfig("", ""), "svc", discardLogger())
	err := c.SendEmail(context.Background(), events.NotificationPayload{
		RecipientEmail: "a@b.c", Subject: "s", TemplateName: "t",
	})
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAuditClient(fallbackConfig("", srv.URL), "svc", discardLogger())
	payload := events.AuditPayload{UserID: 1, Action: "CREATE", ResourceType: "user"}

	for range breakerThreshold {
		_ = c.LogAction(context.Background(), payload)
	}
	require.Equal(t, int32(breakerThreshold), calls.Load())

	// Circuit is open: the next call fails fast without reaching the server.
	err := c.LogAction(context.Background(), payload)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(breakerThreshold), calls.Load())
}
