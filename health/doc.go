// Package health provides health checking primitives for the API client.
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy. The
// dexcom package exposes checkers for vendor reachability, token validity,
// and circuit breaker state.
//
// # Aggregating Health Checks
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register("vendor_api", client.ReachabilityChecker())
//	agg.Register("oauth_token", manager.TokenChecker())
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(agg))
//	http.Handle("/health", health.DetailedHandler(agg))
package health
