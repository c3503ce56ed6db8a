package connectivity

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after Threshold consecutive failures, rejects calls
// for ResetTimeout, then lets probes through until HalfOpenMax successes
// close it again. Any half-open failure reopens it.
type CircuitBreaker struct {
	Threshold    int
	ResetTimeout time.Duration
	HalfOpenMax  int
	Now          func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker returns a breaker with 5 failures, 30s reset and 2
// half-open successes.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{Threshold: 5, ResetTimeout: 30 * time.Second, HalfOpenMax: 2, Now: time.Now}
}

func (cb *CircuitBreaker) now() time.Time {
	if cb.Now != nil {
		return cb.Now()
	}
	return time.Now()
}

// State returns the current state, moving open to half-open once the reset
// timeout has elapsed.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()
	return cb.state
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	return cb.State() != BreakerOpen
}

// Record feeds one call outcome into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()
	if err == nil {
		switch cb.state {
		case BreakerHalfOpen:
			cb.successes++
			if cb.successes >= cb.HalfOpenMax {
				cb.state, cb.failures, cb.successes = BreakerClosed, 0, 0
			}
		case BreakerClosed:
			cb.failures = 0
		}
		return
	}
	cb.lastFailure = cb.now()
	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.Threshold {
			cb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		cb.state, cb.successes = BreakerOpen, 0
	}
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.state, cb.failures, cb.successes = BreakerClosed, 0, 0
	cb.mu.Unlock()
}

// must hold mu
func (cb *CircuitBreaker) advance() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.lastFailure) >= cb.ResetTimeout {
		cb.state, cb.successes = BreakerHalfOpen, 0
	}
}

// WithCircuitBreaker rejects calls with *ErrCircuitOpen while cb is open.
func WithCircuitBreaker(cb *CircuitBreaker, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if !cb.Allow() {
				return nil, &ErrCircuitOpen{Service: service}
			}
			resp, err := next(ctx, payload)
			cb.Record(err)
			return resp, err
		}
	}
}
