package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTimeout = errors.New("connect timeout")
	errBadReq  = errors.New("bad request")
	errLimited = errors.New("too many requests")
)

func testClassify(err error) ErrorClass {
	switch {
	case errors.Is(err, errTimeout):
		return ClassTransient
	case errors.Is(err, errLimited):
		return ClassRateLimited
	default:
		return ClassFatal
	}
}

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})

	if r.config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", r.config.MaxRetries)
	}
	if r.config.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", r.config.BaseDelay)
	}
	if r.config.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", r.config.MaxDelay)
	}
}

func TestRetry_TransientExhaustsAttempts(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		Classify:   testClassify,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTimeout
	})

	if attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (MaxRetries+1)", attempts)
	}
	if !errors.Is(err, errTimeout) {
		t.Errorf("Execute() = %v, want original %v", err, errTimeout)
	}
}

func TestRetry_FatalNotRetried(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxRetries: 2,
		BaseDelay:  10 * time.Millisecond,
		Classify:   testClassify,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errBadReq
	})

	if attempts != 1 {
		t.Errorf("Attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, errBadReq) {
		t.Errorf("Execute() = %v, want %v", err, errBadReq)
	}
}

func TestRetry_SucceedsMidway(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		Classify:   testClassify,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errTimeout
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("Attempts = %d, want 3", attempts)
	}
}

func TestRetry_OnRetryCalledPerSleep(t *testing.T) {
	var calls []int
	r := NewRetry(RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Classify:   testClassify,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, attempt)
		},
	})

	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		return errTimeout
	})

	if len(calls) != 2 {
		t.Fatalf("OnRetry calls = %d, want 2", len(calls))
	}
	if calls[0] != 1 || calls[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Classify:   testClassify,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := r.Execute(ctx, func(ctx context.Context) error {
		attempts++
		return errTimeout
	})

	if attempts != 1 {
		t.Errorf("Attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() = %v, want context.DeadlineExceeded", err)
	}
}

func TestRetry_ComputeDelay_ExponentialWithJitter(t *testing.T) {
	r := NewRetry(RetryConfig{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Classify:  testClassify,
	})

	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{1, 100 * time.Millisecond, 150 * time.Millisecond},
		{2, 200 * time.Millisecond, 300 * time.Millisecond},
		{3, 400 * time.Millisecond, 600 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			d := r.ComputeDelay(tt.attempt, errTimeout)
			if d < tt.min || d >= tt.max {
				t.Fatalf("ComputeDelay(%d) = %v, want within [%v, %v)", tt.attempt, d, tt.min, tt.max)
			}
		}
	}
}

func TestRetry_ComputeDelay_CappedAtMaxDelay(t *testing.T) {
	r := NewRetry(RetryConfig{
		BaseDelay: time.Second,
		MaxDelay:  2 * time.Second,
		Classify:  testClassify,
	})

	// Attempt 10 would be 512s uncapped; jitter adds at most half again.
	d := r.ComputeDelay(10, errTimeout)
	if d < 2*time.Second || d >= 3*time.Second {
		t.Errorf("ComputeDelay(10) = %v, want within [2s, 3s)", d)
	}
}

func TestRetry_ComputeDelay_RetryAfterOverridesBackoff(t *testing.T) {
	r := NewRetry(RetryConfig{
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Classify:  testClassify,
		RetryAfter: func(err error) (time.Duration, bool) {
			if errors.Is(err, errLimited) {
				return 5 * time.Second, true
			}
			return 0, false
		},
	})

	// Rate-limited with a hint: hint wins over the 10ms backoff.
	d := r.ComputeDelay(1, errLimited)
	if d < 5*time.Second || d >= 7500*time.Millisecond {
		t.Errorf("ComputeDelay(rate-limited) = %v, want within [5s, 7.5s)", d)
	}

	// Transient errors ignore the hint.
	d = r.ComputeDelay(1, errTimeout)
	if d >= 20*time.Millisecond {
		t.Errorf("ComputeDelay(transient) = %v, want < 20ms", d)
	}
}

func TestRetry_RateLimitedRetried(t *testing.T) {
	r := NewRetry(RetryConfig{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		Classify:   testClassify,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return errLimited
	})

	if attempts != 2 {
		t.Errorf("Attempts = %d, want 2", attempts)
	}
	if !errors.Is(err, errLimited) {
		t.Errorf("Execute() = %v, want %v", err, errLimited)
	}
}

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  string
	}{
		{ClassTransient, "transient"},
		{ClassRateLimited, "rate_limited"},
		{ClassFatal, "fatal"},
		{ErrorClass(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.class.String(); got != tt.want {
				t.Errorf("ErrorClass.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
