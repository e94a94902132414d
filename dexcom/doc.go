// Package dexcom is a resilient client for the Dexcom OAuth2-protected REST
// API. It keeps tokens fresh via PKCE exchange and single-flight refresh,
// rate-limits outbound calls, stops hammering a degraded vendor with a
// circuit breaker, retries transient failures with backoff and Retry-After
// hints, and emits redacted, correlation-tagged logs and metrics for every
// attempt.
//
// # Wiring
//
// Construct the shared pieces once per (user, provider) and inject them:
//
//	obs, _ := observe.NewObserver(ctx, observe.Config{ServiceName: "cgmlink"})
//
//	tokens, _ := dexcom.NewTokenManager(dexcom.TokenManagerConfig{
//	    User: "user-1",
//	    OAuth: dexcom.OAuthConfig{
//	        ClientID:    "${DEXCOM_CLIENT_ID}",
//	        RedirectURI: "https://example.com/callback",
//	    },
//	}, dexcom.NewMemoryTokenStore(), obs)
//
//	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    MaxCalls: 100,
//	    Period:   time.Minute,
//	})
//	defer limiter.Close()
//
//	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
//
//	client, _ := dexcom.NewClient(dexcom.ClientConfig{}, tokens, limiter, breaker, obs)
//
//	resp, err := client.Get(ctx, "/v2/users/self/egvs", url.Values{"count": {"10"}})
//
// # Authorization flow
//
// InitiateAuthorization produces the vendor login URL and a PKCE verifier;
// HandleCallback exchanges the returned code and persists the token. After
// that every Client call attaches a fresh bearer token automatically,
// refreshing it 30 seconds before expiry and replaying exactly once on 401.
//
// # Error taxonomy
//
// Callers can branch on the error type: resilience.ErrCircuitOpen and
// RateLimitError mean retry later, FatalAPIError means fix the request,
// AuthError means re-authenticate, TransientError means the vendor or
// network misbehaved past retry limits.
package dexcom
