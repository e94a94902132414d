// Package resilience provides the resilience primitives for outbound vendor
// API calls.
//
// The package implements the patterns that keep a degraded or rate-limited
// vendor from taking the service down with it. Each primitive is independent
// and protected by its own lock; they are composed by the request executor in
// the dexcom package.
//
// # Primitives
//
//   - Circuit Breaker: a three-state (closed / open / half-open) failure
//     detector. BeforeRequest gates every attempt; RecordSuccess and
//     RecordFailure drive the state machine.
//
//   - Rate Limiter: a token bucket with a background refill goroutine.
//     Callers park in a FIFO queue when the bucket is empty and are woken in
//     arrival order as tokens accrue.
//
//   - Retry: classification-driven retry with exponential backoff, jitter,
//     and support for server-provided Retry-After hints.
//
//   - Bulkhead: a cap on concurrent calls in flight.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  30 * time.Second,
//	})
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    MaxCalls: 100,
//	    Period:   time.Minute,
//	})
//	defer rl.Close()
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxRetries: 3,
//	    BaseDelay:  time.Second,
//	})
//
//	if err := cb.BeforeRequest(); err != nil {
//	    return err // expected backpressure, try later
//	}
//	if err := rl.Acquire(ctx); err != nil {
//	    return err
//	}
//	err := retry.Execute(ctx, callVendor)
//	if err != nil {
//	    cb.RecordFailure()
//	    return err
//	}
//	cb.RecordSuccess()
package resilience
