package llm

import (
	"sync"

	"go.uber.org/zap"
)

// BreakerState is the circuit breaker state
type BreakerState int

const (
	BreakerClosed BreakerState = iota // Calls flow normally
	BreakerOpen                       // Optional work is suspended
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// Breaker is the client-wide two-state circuit breaker: N consecutive
// failures open it, one success closes it. While open, optional callers
// (the semantic scorer, query expansion) skip the capability instead of
// burning retries against a fully degraded backend. It is global, not per-slot.
type Breaker struct {
	mu          sync.Mutex
	threshold   int
	consecutive int
	state       BreakerState
	log         *zap.Logger
}

// NewBreaker creates a breaker that opens after threshold consecutive failures
func NewBreaker(threshold int, log *zap.Logger) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Breaker{threshold: threshold, log: log}
}

// Allow reports whether optional work should be attempted
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerClosed
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordSuccess resets the failure streak and closes the breaker
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	if b.state == BreakerOpen {
		b.state = BreakerClosed
		b.log.Info("completion breaker closed")
	}
}

// RecordFailure extends the failure streak, opening the breaker at threshold
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	if b.consecutive >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.log.Warn("completion breaker opened",
			zap.Int("consecutive_failures", b.consecutive),
		)
	}
}
