// Package circuit provides a small circuit breaker for outbound collaborator
// calls. When a collaborator is unhealthy the circuit opens and calls are
// skipped without attempting the request.
package circuit

import (
	"sync"
	"time"
)

// Breaker tracks consecutive failures against a threshold. Open circuits
// transition to half-open after the cooldown, letting one request probe the
// collaborator.
type Breaker struct {
	mu sync.RWMutex

	threshold int           // failures to trigger open
	cooldown  time.Duration // how long to stay open

	failures  int       // consecutive failures
	openUntil time.Time // when to transition from open to half-open
	isOpen    bool
}

// New creates a breaker.
// threshold: consecutive failures to open the circuit.
// cooldown: how long to stay open before probing again.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow returns true if the circuit is closed (healthy) or half-open (probing).
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	if !b.isOpen {
		b.mu.RUnlock()
		return true
	}

	expired := time.Now().After(b.openUntil)
	b.mu.RUnlock()

	if expired {
		b.mu.Lock()
		defer b.mu.Unlock()

		// Re-check after acquiring the write lock.
		if b.isOpen && time.Now().After(b.openUntil) {
			b.isOpen = false
			b.failures = 0
		}
		return !b.isOpen
	}

	return false
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.isOpen = false
}

// RecordFailure counts a failure, opening the circuit at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures >= b.threshold {
		b.isOpen = true
		b.openUntil = time.Now().Add(b.cooldown)
	}
}

// IsOpen reports whether the circuit is currently open.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isOpen
}

// Reset manually closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.isOpen = false
}
