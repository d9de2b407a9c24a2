//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"hrms/internal/audit"
	"hrms/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	s.postgres = containers.GetManager().GetPostgres(s.T())
	store, err := audit.NewPostgres(ctx, s.postgres.DSN)
	s.Require().NoError(err)
	s.Require().NoError(store.EnsureSchema(ctx))
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_log"))
}

func newEntry(action string) audit.Entry {
	return audit.Entry{
		EventID:       uuid.NewString(),
		EventType:     "audit.user.action",
		OccurredAt:    time.Now().UTC().Truncate(time.Microsecond),
		SourceService: "user-management-service",
		UserID:        7,
		Action:        action,
		ResourceType:  "user",
		ResourceID:    42,
		Changes:       map[string]any{"status": "active"},
	}
}

func (s *PostgresStoreSuite) count() int {
	var n int
	err := s.postgres.DB.QueryRow("SELECT count(*) FROM audit_log").Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *PostgresStoreSuite) TestInsertBatch() {
	ctx := context.Background()

	err := s.store.InsertBatch(ctx, []audit.Entry{newEntry("CREATE"), newEntry("UPDATE")})
	s.Require().NoError(err)
	s.Equal(2, s.count())
}

func (s *PostgresStoreSuite) TestInsertBatchIsIdempotent() {
	ctx := context.Background()
	entries := []audit.Entry{newEntry("CREATE"), newEntry("UPDATE")}

	s.Require().NoError(s.store.InsertBatch(ctx, entries))
	s.Require().NoError(s.store.InsertBatch(ctx, entries))
	s.Equal(2, s.count())
}

func (s *PostgresStoreSuite) TestInsertBatchPersistsFields() {
	ctx := context.Background()
	entry := newEntry("DELETE")
	entry.Description = "user deleted"
	entry.IPAddress = "10.0.0.5"
	entry.UserAgent = "Firefox on Linux"

	s.Require().NoError(s.store.InsertBatch(ctx, []audit.Entry{entry}))

	var action, description, ip, ua string
	err := s.postgres.DB.QueryRow(
		"SELECT action, description, ip_address, user_agent FROM audit_log WHERE event_id = $1",
		entry.EventID,
	).Scan(&action, &description, &ip, &ua)
	s.Require().NoError(err)
	s.Equal("DELETE", action)
	s.Equal("user deleted", description)
	s.Equal("10.0.0.5", ip)
	s.Equal("Firefox on Linux", ua)
}

func (s *PostgresStoreSuite) TestEmptyBatchIsNoop() {
	s.Require().NoError(s.store.InsertBatch(context.Background(), nil))
	s.Equal(0, s.count())
}
