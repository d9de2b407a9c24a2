package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrms/internal/platform/kafka/consumer"
	"hrms/pkg/events"
)

func auditMessage(t *testing.T, userID int64, action string) *consumer.Message {
	t.Helper()
	env, err := events.New("user-management-service", events.AuditUserAction, events.AuditPayload{
		UserID:       userID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   100 + userID,
	})
	require.NoError(t, err)
	value, err := events.Marshal(env)
	require.NoError(t, err)
	return &consumer.Message{Topic: string(events.TopicAudit), Key: []byte(env.Key()), Value: value}
}

func newTestHandler(t *testing.T, store Store) *Handler {
	t.Helper()
	h, err := NewHandler(store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return h
}

func TestHandleBatch_MaterializesAllEntries(t *testing.T) {
	store := NewMemoryStore()
	h := newTestHandler(t, store)

	msgs := []*consumer.Message{
		auditMessage(t, 1, "CREATE"),
		auditMessage(t, 2, "UPDATE"),
		auditMessage(t, 3, "DELETE"),
	}
	require.NoError(t, h.HandleBatch(context.Background(), msgs))

	entries := store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "CREATE", entries[0].Action)
	assert.Equal(t, int64(2), entries[1].UserID)
	assert.Equal(t, "audit.user.action", entries[0].EventType)
	assert.Equal(t, "user-management-service", entries[0].SourceService)
}

func TestHandleBatch_RedeliveryInsertsNothingTwice(t *testing.T) {
	store := NewMemoryStore()
	h := newTestHandler(t, store)

	msgs := []*consumer.Message{auditMessage(t, 1, "CREATE"), auditMessage(t, 2, "UPDATE")}
	require.NoError(t, h.HandleBatch(context.Background(), msgs))
	require.NoError(t, h.HandleBatch(context.Background(), msgs))

	assert.Len(t, store.Entries(), 2)
}

func TestHandleBatch_SkipsUndecodableMessages(t *testing.T) {
	store := NewMemoryStore()
	h := newTestHandler(t, store)

	msgs := []*consumer.Message{
		auditMessage(t, 1, "CREATE"),
		{Topic: string(events.TopicAudit), Value: []byte("garbage")},
	}
	require.NoError(t, h.HandleBatch(context.Background(), msgs))
	assert.Len(t, store.Entries(), 1)
}

type failingStore struct{}

func (failingStore) InsertBatch(context.Context, []Entry) error {
	return errors.New("connection refused")
}

func TestHandleBatch_StoreFailurePropagates(t *testing.T) {
	h := newTestHandler(t, failingStore{})

	err := h.HandleBatch(context.Background(), []*consumer.Message{auditMessage(t, 1, "CREATE")})
	require.Error(t, err)
}

func TestNewHandler_RequiresStore(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}
