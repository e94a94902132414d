package dexcom

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/cgmlink/resilience"
)

// clientMetrics holds the instruments emitted per logical call and per
// physical attempt.
type clientMetrics struct {
	latency         metric.Float64Histogram
	calls           metric.Int64Counter
	retries         metric.Int64Counter
	rateLimitEvents metric.Int64Counter
	breakerState    metric.Int64Gauge
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	latency, err := meter.Float64Histogram(
		"dexcom.client.call.duration",
		metric.WithDescription("Latency of physical vendor API attempts"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}

	calls, err := meter.Int64Counter(
		"dexcom.client.calls",
		metric.WithDescription("Logical vendor API calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}

	retries, err := meter.Int64Counter(
		"dexcom.client.retries",
		metric.WithDescription("Retry attempts beyond the first"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retries counter: %w", err)
	}

	rateLimitEvents, err := meter.Int64Counter(
		"dexcom.client.rate_limit_events",
		metric.WithDescription("Vendor 429 responses"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rate limit counter: %w", err)
	}

	breakerState, err := meter.Int64Gauge(
		"dexcom.client.breaker_state",
		metric.WithDescription("Circuit breaker state: 0=closed 1=open 2=half-open"),
	)
	if err != nil {
		return nil, fmt.Errorf("create breaker gauge: %w", err)
	}

	return &clientMetrics{
		latency:         latency,
		calls:           calls,
		retries:         retries,
		rateLimitEvents: rateLimitEvents,
		breakerState:    breakerState,
	}, nil
}

func (m *clientMetrics) recordBreakerState(ctx context.Context, state resilience.State) {
	var v int64
	switch state {
	case resilience.StateOpen:
		v = 1
	case resilience.StateHalfOpen:
		v = 2
	}
	m.breakerState.Record(ctx, v)
}
