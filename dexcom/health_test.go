package dexcom

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jonwraymond/cgmlink/health"
	"github.com/jonwraymond/cgmlink/resilience"
)

func TestTokenChecker(t *testing.T) {
	store := NewMemoryTokenStore()
	m := newTestManager(t, "http://unused", store)
	checker := m.TokenChecker()

	if got := checker.Check(context.Background()); got.Status != health.StatusUnhealthy {
		t.Errorf("No token: status = %v, want unhealthy", got.Status)
	}

	_ = store.Put(context.Background(), "u1", "dexcom", &Token{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour),
	})
	if got := checker.Check(context.Background()); got.Status != health.StatusHealthy {
		t.Errorf("Fresh token: status = %v, want healthy", got.Status)
	}

	_ = store.Put(context.Background(), "u1", "dexcom", &Token{
		AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(5 * time.Second),
	})
	if got := checker.Check(context.Background()); got.Status != health.StatusDegraded {
		t.Errorf("Expiring token: status = %v, want degraded", got.Status)
	}

	_ = store.Put(context.Background(), "u1", "dexcom", &Token{
		AccessToken: "at", ExpiresAt: time.Now().Add(-time.Minute),
	})
	if got := checker.Check(context.Background()); got.Status != health.StatusUnhealthy {
		t.Errorf("Expired without refresh token: status = %v, want unhealthy", got.Status)
	}
}

func TestBreakerChecker(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	fx := newClientFixture(t, srv.URL, ClientConfig{},
		resilience.CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	checker := fx.client.BreakerChecker()

	if got := checker.Check(context.Background()); got.Status != health.StatusHealthy {
		t.Errorf("Closed breaker: status = %v, want healthy", got.Status)
	}

	fx.breaker.RecordFailure()
	if got := checker.Check(context.Background()); got.Status != health.StatusUnhealthy {
		t.Errorf("Open breaker: status = %v, want unhealthy", got.Status)
	}
}

func TestReachabilityChecker(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized) // vendor up, probe unauthenticated
	})
	fx := newClientFixture(t, srv.URL, ClientConfig{}, resilience.CircuitBreakerConfig{})

	if got := fx.client.ReachabilityChecker().Check(context.Background()); got.Status != health.StatusHealthy {
		t.Errorf("Reachable vendor: status = %v, want healthy", got.Status)
	}

	srv.Close()
	if got := fx.client.ReachabilityChecker().Check(context.Background()); got.Status != health.StatusUnhealthy {
		t.Errorf("Unreachable vendor: status = %v, want unhealthy", got.Status)
	}
}
