package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeStore remembers processed event ids so redelivered messages do not
// send duplicate emails. MarkProcessed claims the id and reports whether this
// is the first time it was seen; Release gives the claim back when the send
// it guarded failed, so a replay can try again.
type DedupeStore interface {
	MarkProcessed(ctx context.Context, eventID string) (first bool, err error)
	Release(ctx context.Context, eventID string) error
}

const (
	dedupeKeyPrefix = "notification:processed:"
	dedupeTTL       = 24 * time.Hour
)

// RedisDedupe claims event ids with SETNX. The TTL bounds memory: a
// redelivery later than the TTL sends again, which at-least-once delivery
// permits.
type RedisDedupe struct {
	client redis.UniversalClient
}

func NewRedisDedupe(client redis.UniversalClient) *RedisDedupe {
	return &RedisDedupe{client: client}
}

func (d *RedisDedupe) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, dedupeKeyPrefix+eventID, "1", dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim event id %s: %w", eventID, err)
	}
	return first, nil
}

func (d *RedisDedupe) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, dedupeKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event id %s: %w", eventID, err)
	}
	return nil
}

// MemoryDedupe is the in-process fallback when Redis is not configured, and
// the store tests use.
type MemoryDedupe struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{seen: make(map[string]struct{})}
}

func (d *MemoryDedupe) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}

func (d *MemoryDedupe) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
