// Package breaker wraps the background persistence path in a circuit breaker:
// repeated save failures disable the repository for a cooldown window instead
// of hammering a degraded database.
package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker is a thread-safe failure tracker with three operations:
// ShouldAttempt, RecordSuccess and RecordFailure. After maxFailures
// consecutive failures it opens for the configured timeout; the first
// admission after the timeout elapses probes the dependency and a success
// resets the counter. A timeout of zero disables opening entirely — every
// call admits.
type Breaker struct {
	mu      sync.Mutex
	cb      *gobreaker.TwoStepCircuitBreaker
	pending func(success bool)
	// disabled short-circuits the breaker when the cooldown is zero.
	disabled bool
}

// New creates a breaker that opens after maxFailures consecutive failures and
// re-admits after timeout. timeout == 0 means "never open".
func New(name string, maxFailures int, timeout time.Duration) *Breaker {
	if timeout <= 0 {
		return &Breaker{disabled: true}
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{cb: gobreaker.NewTwoStepCircuitBreaker(settings)}
}

// ShouldAttempt reports whether the protected operation may run. While the
// breaker is open it returns false; once the cooldown has elapsed it admits a
// single probe.
func (b *Breaker) ShouldAttempt() bool {
	if b.disabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// An admission that was never resolved counts as a failure; the save
	// path always resolves before asking again, so this is a safety net.
	if b.pending != nil {
		b.pending(false)
		b.pending = nil
	}

	done, err := b.cb.Allow()
	if err != nil {
		return false
	}
	b.pending = done
	return true
}

// RecordSuccess resolves the pending admission as a success, resetting the
// failure count and closing the breaker.
func (b *Breaker) RecordSuccess() {
	if b.disabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.pending(true)
		b.pending = nil
	}
}

// RecordFailure resolves the pending admission as a failure, incrementing the
// consecutive-failure count and opening the breaker once the threshold is hit.
func (b *Breaker) RecordFailure() {
	if b.disabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		b.pending(false)
		b.pending = nil
	}
}
