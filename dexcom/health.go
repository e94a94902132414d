package dexcom

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/cgmlink/health"
	"github.com/jonwraymond/cgmlink/resilience"
)

// TokenChecker reports the stored token's validity: healthy when fresh,
// degraded when expiring within the refresh buffer, unhealthy when missing
// or expired with no refresh token.
func (m *TokenManager) TokenChecker() health.Checker {
	return health.NewCheckerFunc("oauth_token", func(ctx context.Context) health.Result {
		token, err := m.CurrentToken(ctx)
		if err != nil {
			return health.Unhealthy("no token stored", err)
		}

		details := map[string]any{
			"expires_at":        token.ExpiresAt.Format(time.RFC3339),
			"has_refresh_token": token.RefreshToken != "",
		}

		switch {
		case token.Expired() && token.RefreshToken == "":
			return health.Unhealthy("token expired with no refresh token", health.ErrCheckFailed).WithDetails(details)
		case token.ExpiresWithin(m.config.RefreshBuffer):
			return health.Degraded("token expiring, refresh pending").WithDetails(details)
		default:
			return health.Healthy("token valid").WithDetails(details)
		}
	})
}

// BreakerChecker reports circuit breaker state: healthy when closed,
// degraded while probing half-open, unhealthy while open.
func (c *Client) BreakerChecker() health.Checker {
	return health.NewCheckerFunc("circuit_breaker", func(ctx context.Context) health.Result {
		state := c.breaker.State()
		details := map[string]any{"state": state.String()}

		switch state {
		case resilience.StateOpen:
			return health.Unhealthy("circuit breaker open", health.ErrCheckFailed).WithDetails(details)
		case resilience.StateHalfOpen:
			return health.Degraded("circuit breaker probing recovery").WithDetails(details)
		default:
			return health.Healthy("circuit breaker closed").WithDetails(details)
		}
	})
}

// ReachabilityChecker reports whether the vendor API answers at all. The
// probe bypasses the breaker and rate limiter so a degraded client can still
// observe vendor recovery.
func (c *Client) ReachabilityChecker() health.Checker {
	return health.NewCheckerFunc("vendor_api", func(ctx context.Context) health.Result {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/", nil)
		if err != nil {
			return health.Unhealthy("building probe request failed", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return health.Unhealthy("vendor unreachable", err)
		}
		defer resp.Body.Close()

		details := map[string]any{"status": resp.StatusCode}
		if resp.StatusCode >= 500 {
			return health.Degraded(fmt.Sprintf("vendor responding with %d", resp.StatusCode)).WithDetails(details)
		}
		// Any non-5xx answer means the vendor is up; auth failures are expected
		// for an unauthenticated probe.
		return health.Healthy("vendor reachable").WithDetails(details)
	})
}
