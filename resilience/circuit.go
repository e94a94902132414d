package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all calls.
	StateOpen
	// StateHalfOpen means the circuit is letting a limited number of probes through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state before opening the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit waits before letting
	// half-open probes through.
	// Default: 30 seconds
	RecoveryTimeout time.Duration

	// HalfOpenSuccessThreshold is the number of successful probes required
	// to close the circuit again.
	// Default: 2
	HalfOpenSuccessThreshold int

	// HalfOpenMaxAttempts is the maximum number of probes permitted while
	// half-open before the circuit reverts to open.
	// Default: 2
	HalfOpenMaxAttempts int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error counts as a failure in Execute.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker is a three-state failure detector for an outbound dependency.
//
// Every call attempt must invoke BeforeRequest first; if it returns nil,
// exactly one of RecordSuccess or RecordFailure must follow. Execute wraps
// that protocol for callers that do not need to interleave other steps
// between the gate and the call.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             State
	failures          int
	halfOpenSuccesses int
	halfOpenAttempts  int
	openedAt          time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.HalfOpenSuccessThreshold <= 0 {
		config.HalfOpenSuccessThreshold = 2
	}
	if config.HalfOpenMaxAttempts <= 0 {
		config.HalfOpenMaxAttempts = 2
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// BeforeRequest reports whether a call attempt is permitted.
//
// An open circuit whose recovery timeout has elapsed transitions to half-open
// here, and the permitting call counts as the first probe. Returns
// ErrCircuitOpen when the attempt is rejected; no call may be made in that
// case and neither RecordSuccess nor RecordFailure may follow.
func (cb *CircuitBreaker) BeforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.config.RecoveryTimeout {
			return ErrCircuitOpen
		}
		cb.transitionLocked(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenAttempts >= cb.config.HalfOpenMaxAttempts {
			cb.openedAt = time.Now()
			cb.transitionLocked(StateOpen)
			return ErrCircuitOpen
		}
		cb.halfOpenAttempts++
	}

	return nil
}

// RecordSuccess records the successful completion of a permitted call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.HalfOpenSuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
}

// RecordFailure records the failed completion of a permitted call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.openedAt = time.Now()
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// Failed probe, back to open with a fresh recovery window.
		cb.openedAt = time.Now()
		cb.transitionLocked(StateOpen)
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.BeforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	if cb.config.IsFailure(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
}

// transitionLocked moves to a new state and resets the counters that are only
// meaningful in the state being left. Callers hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to

	cb.halfOpenSuccesses = 0
	cb.halfOpenAttempts = 0
	if to == StateClosed {
		cb.failures = 0
	}

	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Snapshot contains circuit breaker statistics.
type Snapshot struct {
	State             State
	Failures          int
	HalfOpenSuccesses int
	HalfOpenAttempts  int
	OpenedAt          time.Time
}

// Snapshot returns the current circuit breaker counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		State:             cb.state,
		Failures:          cb.failures,
		HalfOpenSuccesses: cb.halfOpenSuccesses,
		HalfOpenAttempts:  cb.halfOpenAttempts,
		OpenedAt:          cb.openedAt,
	}
}
