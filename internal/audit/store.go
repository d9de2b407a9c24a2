// Package audit materializes audit events into durable storage. The store is
// idempotent on event id, so redelivered batches insert nothing twice.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry is one materialized audit record.
type Entry struct {
	EventID       string
	EventType     string
	OccurredAt    time.Time
	SourceService string
	CorrelationID string
	UserID        int64
	Action        string
	ResourceType  string
	ResourceID    int64
	Description   string
	IPAddress     string
	UserAgent     string
	OldValue      string
	NewValue      string
	Changes       map[string]any
}

// Store persists audit entries. InsertBatch must tolerate entries whose
// event id was already written.
type Store interface {
	InsertBatch(ctx context.Context, entries []Entry) error
}

// MemoryStore keeps entries in process. Used in tests and as the fallback
// when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]struct{}
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]struct{})}
}

func (s *MemoryStore) InsertBatch(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.byID[e.EventID]; ok {
			continue
		}
		s.byID[e.EventID] = struct{}{}
		s.entries = append(s.entries, e)
	}
	return nil
}

// Entries returns a copy of everything written, in insertion order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
