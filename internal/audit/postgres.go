package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens the database and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	event_id       TEXT PRIMARY KEY,
	event_type     TEXT NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	source_service TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	user_id        BIGINT NOT NULL,
	action         TEXT NOT NULL,
	resource_type  TEXT NOT NULL,
	resource_id    BIGINT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	ip_address     TEXT NOT NULL DEFAULT '',
	user_agent     TEXT NOT NULL DEFAULT '',
	old_value      TEXT NOT NULL DEFAULT '',
	new_value      TEXT NOT NULL DEFAULT '',
	changes        JSONB,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON audit_log (resource_type, resource_id);
CREATE INDEX IF NOT EXISTS audit_log_user_idx ON audit_log (user_id, occurred_at);
`

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

const insertEntry = `
INSERT INTO audit_log (
	event_id, event_type, occurred_at, source_service, correlation_id,
	user_id, action, resource_type, resource_id, description,
	ip_address, user_agent, old_value, new_value, changes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (event_id) DO NOTHING
`

// InsertBatch writes the batch in one transaction. Entries whose event id is
// already present are skipped, so replays are harmless.
func (s *PostgresStore) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		changes, err := marshalChanges(e.Changes)
		if err != nil {
			return fmt.Errorf("encode changes for event %s: %w", e.EventID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.EventID, e.EventType, e.OccurredAt, e.SourceService, e.CorrelationID,
			e.UserID, e.Action, e.ResourceType, e.ResourceID, e.Description,
			e.IPAddress, e.UserAgent, e.OldValue, e.NewValue, changes,
		); err != nil {
			return fmt.Errorf("insert audit entry %s: %w", e.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func marshalChanges(changes map[string]any) (any, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	return b, nil
}
