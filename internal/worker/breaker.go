// Package worker hosts the background loops: the fulfillment dispatcher
// with its circuit breaker, and the scheduled maintenance sweeps.
package worker

import (
	"sync"
	"time"
)

// Breaker counts fulfillment failures in a rolling time window. The window
// lives in process memory; the consequence of a trip (disabling
// auto-fulfill) is written durably by the dispatcher, so a restart clears
// the window but never silently re-enables fulfillment.
type Breaker struct {
	mu       sync.Mutex
	failures []time.Time
	tripped  bool
}

func NewBreaker() *Breaker {
	return &Breaker{}
}

// Record registers one failure at now and reports whether this failure
// trips the breaker. It returns true at most once per trip; further
// failures while tripped return false.
func (b *Breaker) Record(now time.Time, window time.Duration, threshold int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = append(kept, now)

	if b.tripped {
		return false
	}
	if len(b.failures) >= threshold {
		b.tripped = true
		return true
	}
	return false
}

// Reset re-arms the breaker after an operator re-enables fulfillment.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.failures = nil
	b.tripped = false
	b.mu.Unlock()
}

// Tripped reports whether the breaker is currently open.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}
