package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	// before any attempt is made. It is expected backpressure, not a fault.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimiterClosed is returned to callers still waiting for a token
	// when the rate limiter is closed.
	ErrRateLimiterClosed = errors.New("resilience: rate limiter closed")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
)
