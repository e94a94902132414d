package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ErrorClass categorizes an error for retry purposes.
type ErrorClass int

const (
	// ClassTransient covers connection failures, timeouts and 5xx responses;
	// these are retried with exponential backoff.
	ClassTransient ErrorClass = iota
	// ClassRateLimited covers 429 responses; these are retried, preferring
	// the server's Retry-After hint over the backoff schedule.
	ClassRateLimited
	// ClassFatal covers errors that will not succeed on retry; they are
	// surfaced immediately without sleeping.
	ClassFatal
)

// String returns the string representation of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt, so a
	// call makes at most MaxRetries+1 attempts.
	// Default: 3
	MaxRetries int

	// BaseDelay is the backoff delay before the first retry; subsequent
	// retries double it.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay (before jitter).
	// Default: 30 seconds
	MaxDelay time.Duration

	// Classify assigns an ErrorClass to an error.
	// Default: every non-nil error is transient.
	Classify func(err error) ErrorClass

	// RetryAfter extracts a server-provided delay hint from an error, for
	// rate-limited responses carrying a Retry-After header.
	RetryAfter func(err error) (time.Duration, bool)

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry is a retry policy driven by error classification.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry policy.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Classify == nil {
		config.Classify = func(err error) ErrorClass { return ClassTransient }
	}

	return &Retry{config: config}
}

// Execute runs the operation, retrying transient and rate-limited failures
// until they succeed or the attempt budget is exhausted. Fatal errors are
// returned immediately. The last error is returned unwrapped so callers keep
// its type.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	attempts := r.config.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if r.config.Classify(err) == ClassFatal {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := r.ComputeDelay(attempt, err)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// ComputeDelay returns the sleep before the retry following the given attempt
// (1-based). Rate-limited errors carrying a Retry-After hint use the hint;
// everything else backs off exponentially from BaseDelay, capped at MaxDelay.
// A jitter drawn uniformly from [0, delay/2) is always added.
func (r *Retry) ComputeDelay(attempt int, err error) time.Duration {
	var delay time.Duration

	hinted := false
	if r.config.Classify(err) == ClassRateLimited && r.config.RetryAfter != nil {
		if hint, ok := r.config.RetryAfter(err); ok && hint > 0 {
			delay = hint
			hinted = true
		}
	}
	if !hinted {
		backoff := float64(r.config.BaseDelay) * math.Pow(2, float64(attempt-1))
		delay = time.Duration(backoff)
		if delay > r.config.MaxDelay || delay <= 0 {
			delay = r.config.MaxDelay
		}
	}

	if half := int64(delay / 2); half > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int63n(half))
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
