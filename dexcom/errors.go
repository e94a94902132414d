package dexcom

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/cgmlink/resilience"
)

// ErrTokenNotFound indicates no token is stored for the (user, provider) pair.
var ErrTokenNotFound = errors.New("dexcom: no token stored")

// AuthError indicates a failed authorization, token exchange, or refresh.
// Callers receiving an AuthError must re-authenticate; it is never retried.
type AuthError struct {
	// Code is the OAuth error code from the vendor, if any (e.g. "invalid_grant").
	Code string
	// Description is the vendor's human-readable error description.
	Description string
	// StatusCode is the HTTP status of the failing response, 0 for transport errors.
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("dexcom: auth failed: %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("dexcom: auth failed: %s", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("dexcom: auth failed: %v", e.Err)
	default:
		return fmt.Sprintf("dexcom: auth failed with status %d", e.StatusCode)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError indicates the vendor returned 429. RetryAfter carries the
// server-provided wait hint, zero when the header was absent or unparseable.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("dexcom: rate limited (retry after %s)", e.RetryAfter)
	}
	return "dexcom: rate limited"
}

// TransientError indicates a connection failure, timeout, or HTTP 5xx.
// Transient errors are retried up to policy limits.
type TransientError struct {
	// StatusCode is the HTTP status for 5xx responses, 0 for transport errors.
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dexcom: transient failure: %v", e.Err)
	}
	return fmt.Sprintf("dexcom: transient failure: status %d", e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalAPIError indicates a non-auth, non-rate-limit 4xx. The request itself
// is wrong; it is never retried.
type FatalAPIError struct {
	StatusCode int
	Body       string
}

func (e *FatalAPIError) Error() string {
	return fmt.Sprintf("dexcom: request rejected with status %d", e.StatusCode)
}

// ValidationError indicates a malformed or unparseable response body.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dexcom: invalid response: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError indicates a required configuration field is missing or invalid.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dexcom: config field %q is missing or invalid", e.Field)
}

// classify maps the error taxonomy onto retry classes. Anything not
// explicitly transient or rate-limited is fatal and never retried.
func classify(err error) resilience.ErrorClass {
	var te *TransientError
	if errors.As(err, &te) {
		return resilience.ClassTransient
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return resilience.ClassRateLimited
	}
	return resilience.ClassFatal
}

// retryAfterHint surfaces the server-provided Retry-After delay for
// rate-limited responses so the retry policy can honor it over backoff.
func retryAfterHint(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter, true
	}
	return 0, false
}
