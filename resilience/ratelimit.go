package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// MaxCalls is the number of calls allowed per Period. It is also the
	// bucket capacity (burst size); the bucket starts full.
	// Default: 100
	MaxCalls int

	// Period is the window over which MaxCalls applies.
	// Default: 1 second
	Period time.Duration

	// RefillInterval is how often the background refill runs.
	// Default: 100ms
	RefillInterval time.Duration
}

// RateLimiter is a token bucket gating outbound calls.
//
// Acquire consumes one token, parking the caller in a FIFO queue when the
// bucket is empty. A background goroutine owned by the limiter refills the
// bucket and hands tokens directly to parked waiters in arrival order, so
// waiters are released strictly FIFO and cannot be barged by new arrivals.
// Close stops the refill goroutine and fails all parked waiters with
// ErrRateLimiterClosed.
type RateLimiter struct {
	config     RateLimiterConfig
	refillRate float64 // tokens per second

	mu         sync.Mutex
	tokens     float64
	capacity   float64
	lastRefill time.Time
	waiters    []chan error
	closed     bool

	done chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its refill goroutine.
// Callers must Close it when done.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.MaxCalls <= 0 {
		config.MaxCalls = 100
	}
	if config.Period <= 0 {
		config.Period = time.Second
	}
	if config.RefillInterval <= 0 {
		config.RefillInterval = 100 * time.Millisecond
	}

	rl := &RateLimiter{
		config:     config,
		refillRate: float64(config.MaxCalls) / config.Period.Seconds(),
		tokens:     float64(config.MaxCalls),
		capacity:   float64(config.MaxCalls),
		lastRefill: time.Now(),
		done:       make(chan struct{}),
	}

	go rl.refillLoop()

	return rl
}

// Acquire consumes one token, blocking until one is available, the context is
// cancelled, or the limiter is closed. A caller that gives up while queued is
// removed from the queue; its slot is not leaked.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return ErrRateLimiterClosed
	}
	if rl.tokens >= 1 {
		rl.tokens--
		rl.mu.Unlock()
		return nil
	}
	w := make(chan error, 1)
	rl.waiters = append(rl.waiters, w)
	rl.mu.Unlock()

	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		rl.abandon(w)
		return ctx.Err()
	}
}

// abandon removes a cancelled waiter from the queue. If the waiter was
// already granted a token, the token is passed on to the next waiter or
// returned to the bucket.
func (rl *RateLimiter) abandon(w chan error) {
	rl.mu.Lock()
	for i, q := range rl.waiters {
		if q == w {
			rl.waiters = append(rl.waiters[:i], rl.waiters[i+1:]...)
			rl.mu.Unlock()
			return
		}
	}

	// Not queued anymore: the waiter has been resolved concurrently.
	select {
	case err := <-w:
		if err == nil {
			// A token was handed off after cancellation; don't lose it.
			if len(rl.waiters) > 0 {
				next := rl.waiters[0]
				rl.waiters = rl.waiters[1:]
				next <- nil
			} else if rl.tokens < rl.capacity {
				rl.tokens++
			}
		}
	default:
	}
	rl.mu.Unlock()
}

func (rl *RateLimiter) refillLoop() {
	ticker := time.NewTicker(rl.config.RefillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.refill(now)
		}
	}
}

// refill adds whole tokens accrued since the last refill and wakes that many
// FIFO waiters. Fractional accrual is preserved by leaving lastRefill in
// place until at least one whole token has accumulated.
func (rl *RateLimiter) refill(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return
	}

	elapsed := now.Sub(rl.lastRefill).Seconds()
	accrued := math.Floor(elapsed * rl.refillRate)
	if accrued < 1 {
		return
	}
	if rl.tokens+accrued > rl.capacity {
		accrued = rl.capacity - rl.tokens
	}
	rl.tokens += accrued
	rl.lastRefill = now

	for rl.tokens >= 1 && len(rl.waiters) > 0 {
		w := rl.waiters[0]
		rl.waiters = rl.waiters[1:]
		rl.tokens--
		w <- nil
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}

// Close stops the refill goroutine and resolves all queued waiters with
// ErrRateLimiterClosed. Acquire calls after Close fail immediately.
// Close is idempotent.
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return
	}
	rl.closed = true
	waiters := rl.waiters
	rl.waiters = nil
	rl.mu.Unlock()

	close(rl.done)
	for _, w := range waiters {
		w <- ErrRateLimiterClosed
	}
}
