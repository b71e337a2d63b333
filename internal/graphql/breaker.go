package graphql

import (
	"errors"
	"sync"
	"time"

	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
)

// BreakerState is the state of a CircuitBreaker.
type BreakerState int

const (
	// BreakerClosed lets every request through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerHalfOpen lets trial requests through.
	BreakerHalfOpen
	// BreakerOpen rejects every request until the open timeout elapses.
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// minErrorRateSamples is the smallest window population for which the error
// rate threshold is evaluated.
const minErrorRateSamples = 10

// CircuitBreaker guards the GraphQL endpoint. It opens after a run of
// consecutive failures or when the error rate over a tumbling window crosses
// a threshold, and closes again after enough successful half-open trials.
// It is safe for concurrent use.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	failureThreshold   int
	successThreshold   int
	timeout            time.Duration
	errorRateThreshold float64
	errorRateWindow    time.Duration

	windowStart    time.Time
	windowTotal    int
	windowFailures int

	onChange func(BreakerState)
}

// NewCircuitBreaker builds a breaker from cfg. Zero thresholds take the
// defaults 5 failures, 2 successes and a 30s open timeout. A zero error rate
// threshold or window disables rate-based tripping. onChange, if non-nil, is
// called with the new state after every transition, with the lock released.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig, onChange func(BreakerState)) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:              BreakerClosed,
		failureThreshold:   cfg.FailureThreshold,
		successThreshold:   cfg.SuccessThreshold,
		timeout:            cfg.Timeout,
		errorRateThreshold: cfg.ErrorRateThreshold,
		errorRateWindow:    cfg.ErrorRateWindow,
		windowStart:        time.Now(),
		onChange:           onChange,
	}
	if cb.failureThreshold < 1 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold < 1 {
		cb.successThreshold = 2
	}
	if cb.timeout <= 0 {
		cb.timeout = 30 * time.Second
	}
	return cb
}

// Allow returns nil if a request may proceed and ErrCircuitOpen otherwise.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	changed := cb.expireOpen()
	open := cb.state == BreakerOpen
	cb.mu.Unlock()

	cb.notify(changed)
	if open {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess records a request that reached the server and got a
// non-5xx answer.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	changed := false
	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
		cb.recordWindowCall(false)
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = BreakerClosed
			cb.failures = 0
			cb.successes = 0
			cb.resetWindow()
			changed = true
		}
	}
	cb.mu.Unlock()
	cb.notify(changed)
}

// RecordFailure records a transport failure or a 5xx answer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	changed := false
	switch cb.state {
	case BreakerClosed:
		cb.failures++
		cb.recordWindowCall(true)
		if cb.failures >= cb.failureThreshold || cb.errorRateExceeded() {
			cb.trip()
			changed = true
		}
	case BreakerHalfOpen:
		cb.trip()
		changed = true
	}
	cb.mu.Unlock()
	cb.notify(changed)
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	changed := cb.expireOpen()
	state := cb.state
	cb.mu.Unlock()
	cb.notify(changed)
	return state
}

// Counts returns the consecutive failure and half-open success counts.
func (cb *CircuitBreaker) Counts() (failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.successes
}

// ErrorRate returns the error rate and request count of the current window.
func (cb *CircuitBreaker) ErrorRate() (rate float64, total int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeResetWindow()
	if cb.windowTotal == 0 {
		return 0, 0
	}
	return float64(cb.windowFailures) / float64(cb.windowTotal), cb.windowTotal
}

func (cb *CircuitBreaker) notify(changed bool) {
	if !changed || cb.onChange == nil {
		return
	}
	cb.onChange(cb.State())
}

// The helpers below must be called with cb.mu held.

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openedAt = time.Now()
	cb.successes = 0
	cb.resetWindow()
}

func (cb *CircuitBreaker) expireOpen() bool {
	if cb.state == BreakerOpen && time.Since(cb.openedAt) > cb.timeout {
		cb.state = BreakerHalfOpen
		cb.successes = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) recordWindowCall(failure bool) {
	if cb.errorRateWindow <= 0 {
		return
	}
	cb.maybeResetWindow()
	cb.windowTotal++
	if failure {
		cb.windowFailures++
	}
}

func (cb *CircuitBreaker) maybeResetWindow() {
	if cb.errorRateWindow > 0 && time.Since(cb.windowStart) > cb.errorRateWindow {
		cb.resetWindow()
	}
}

func (cb *CircuitBreaker) resetWindow() {
	cb.windowStart = time.Now()
	cb.windowTotal = 0
	cb.windowFailures = 0
}

func (cb *CircuitBreaker) errorRateExceeded() bool {
	if cb.errorRateThreshold <= 0 || cb.errorRateWindow <= 0 || cb.windowTotal < minErrorRateSamples {
		return false
	}
	return float64(cb.windowFailures)/float64(cb.windowTotal) >= cb.errorRateThreshold
}
