package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register("a", healthyChecker("a"))

	rec := httptest.NewRecorder()
	ReadinessHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}

	agg.Register("down", NewCheckerFunc("down", func(ctx context.Context) Result {
		return Unhealthy("vendor unreachable", errors.New("dial refused"))
	}))

	rec = httptest.NewRecorder()
	ReadinessHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", rec.Code)
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register("a", healthyChecker("a"))
	agg.Register("b", NewCheckerFunc("b", func(ctx context.Context) Result {
		return Degraded("breaker half-open")
	}))

	rec := httptest.NewRecorder()
	DetailedHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Overall status = %q, want degraded", resp.Status)
	}
	if resp.Checks["b"].Message != "breaker half-open" {
		t.Errorf("Check b message = %q", resp.Checks["b"].Message)
	}
}
