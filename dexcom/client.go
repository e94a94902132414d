package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/cgmlink/observe"
	"github.com/jonwraymond/cgmlink/resilience"
)

// ClientConfig configures the request executor.
type ClientConfig struct {
	// BaseURL is the vendor API root.
	// Default: "https://api.dexcom.com"
	BaseURL string

	// UserAgent is sent with every request.
	// Default: "cgmlink"
	UserAgent string

	// CallTimeout bounds each physical HTTP attempt independently of the
	// retry loop.
	// Default: 10s
	CallTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int

	// BaseDelay is the first retry backoff delay.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	// Default: 30s
	MaxDelay time.Duration

	// MaxConcurrent caps calls in flight. Zero disables the bulkhead.
	MaxConcurrent int

	// HTTPClient performs the requests.
	// Default: client with no timeout (attempts are bounded by CallTimeout)
	HTTPClient *http.Client
}

// Request describes one logical vendor API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header
	// CorrelationID groups log entries across retries of this call.
	// Generated when empty.
	CorrelationID string
}

// Response is a completed vendor API response.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	CorrelationID string
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// Client is the resilient request executor for the vendor API. Every call is
// gated by the circuit breaker, then the rate limiter, carries a fresh
// bearer token, and runs under the retry policy. Dependencies are injected
// at construction; Client holds no global state.
type Client struct {
	config   ClientConfig
	tokens   *TokenManager
	limiter  *resilience.RateLimiter
	breaker  *resilience.CircuitBreaker
	bulkhead *resilience.Bulkhead
	retry    *resilience.Retry
	http     *http.Client
	log      observe.Logger
	tracer   trace.Tracer
	metrics  *clientMetrics
}

// NewClient creates a Client. tokens, limiter, and breaker are required;
// they are shared per (user, provider) and owned by the caller. A nil
// observer gets noop telemetry.
func NewClient(config ClientConfig, tokens *TokenManager, limiter *resilience.RateLimiter, breaker *resilience.CircuitBreaker, obs observe.Observer) (*Client, error) {
	if tokens == nil {
		return nil, &ConfigError{Field: "tokens"}
	}
	if limiter == nil {
		return nil, &ConfigError{Field: "limiter"}
	}
	if breaker == nil {
		return nil, &ConfigError{Field: "breaker"}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.dexcom.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.UserAgent == "" {
		config.UserAgent = "cgmlink"
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if obs == nil {
		obs = observe.NewNoopObserver()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	metrics, err := newClientMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		tokens:  tokens,
		limiter: limiter,
		breaker: breaker,
		http:    httpClient,
		log:     obs.Logger().WithComponent("dexcom_client"),
		tracer:  obs.Tracer(),
		metrics: metrics,
	}

	if config.MaxConcurrent > 0 {
		c.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: config.MaxConcurrent,
			MaxWait:       config.CallTimeout,
		})
	}

	c.retry = resilience.NewRetry(resilience.RetryConfig{
		MaxRetries: config.MaxRetries,
		BaseDelay:  config.BaseDelay,
		MaxDelay:   config.MaxDelay,
		Classify:   classify,
		RetryAfter: retryAfterHint,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Info(context.Background(), "retrying request",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		},
	})

	return c, nil
}

// Get executes a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post executes a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do executes one logical call: circuit breaker gate, rate limiter, token
// attach, HTTP with retry. A 401 triggers exactly one forced token refresh
// and replay outside the retry bookkeeping; a repeat 401 surfaces as an
// AuthError. The breaker records the final outcome once: success, or
// failure for transient and rate-limited errors. Fatal errors leave the
// breaker untouched.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		req.Path = "/" + req.Path
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	}

	ctx, span := c.tracer.Start(ctx, "dexcom.client.do", trace.WithAttributes(
		append(attrs, attribute.String("correlation_id", correlationID))...,
	))
	defer span.End()

	if err := c.breaker.BeforeRequest(); err != nil {
		c.metrics.recordBreakerState(ctx, c.breaker.State())
		c.countCall(ctx, req, "circuit_open")
		c.log.Warn(ctx, "request rejected by circuit breaker",
			observe.Field{Key: "correlation_id", Value: correlationID},
			observe.Field{Key: "method", Value: req.Method},
			observe.Field{Key: "path", Value: req.Path},
		)
		span.SetStatus(codes.Error, "circuit open")
		return nil, err
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		// The call never reached the vendor, so the breaker records nothing.
		span.RecordError(err)
		return nil, err
	}

	if c.bulkhead != nil {
		if err := c.bulkhead.Acquire(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
		defer c.bulkhead.Release()
	}

	var resp *Response
	attempt := 0
	forcedRefresh := false

	err := c.retry.Execute(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.retries.Add(ctx, 1, metric.WithAttributes(attrs...))
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		r, err := c.attempt(ctx, req, token.AccessToken, correlationID, attempt)
		if err == nil {
			resp = r
			return nil
		}

		// A 401 gets exactly one forced refresh and replay, outside the
		// retry bookkeeping. A second 401 means re-authentication is needed.
		var ae *AuthError
		if errors.As(err, &ae) && ae.StatusCode == http.StatusUnauthorized && !forcedRefresh {
			forcedRefresh = true
			fresh, rerr := c.tokens.Refresh(ctx)
			if rerr != nil {
				return &AuthError{Description: "token refresh after 401 failed", Err: rerr}
			}
			r, err = c.attempt(ctx, req, fresh.AccessToken, correlationID, attempt)
			if err == nil {
				resp = r
				return nil
			}
		}
		return err
	})

	if err != nil {
		switch classify(err) {
		case resilience.ClassTransient, resilience.ClassRateLimited:
			c.breaker.RecordFailure()
		}
		c.metrics.recordBreakerState(ctx, c.breaker.State())
		c.countCall(ctx, req, classify(err).String())
		c.log.Error(ctx, "request failed",
			observe.Field{Key: "correlation_id", Value: correlationID},
			observe.Field{Key: "method", Value: req.Method},
			observe.Field{Key: "path", Value: req.Path},
			observe.Field{Key: "attempts", Value: attempt},
			observe.Field{Key: "error", Value: err.Error()},
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.breaker.RecordSuccess()
	c.metrics.recordBreakerState(ctx, c.breaker.State())
	c.countCall(ctx, req, "success")
	resp.CorrelationID = correlationID
	return resp, nil
}

func (c *Client) countCall(ctx context.Context, req Request, outcome string) {
	c.metrics.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.String("outcome", outcome),
	))
}

// attempt performs one physical HTTP attempt bounded by CallTimeout and maps
// the response onto the error taxonomy. 2xx returns the response; 401 maps
// to AuthError, 429 to RateLimitError, 5xx and transport failures to
// TransientError, any other 4xx to FatalAPIError.
func (c *Client) attempt(ctx context.Context, req Request, accessToken, correlationID string, attempt int) (*Response, error) {
	target := c.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &ValidationError{Err: fmt.Errorf("encode request body: %w", err)}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	actx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(actx, req.Method, target, bodyReader)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}
	hreq.Header.Set("Authorization", "Bearer "+accessToken)
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", c.config.UserAgent)
	hreq.Header.Set("X-Correlation-ID", correlationID)
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	// The logger redacts sensitive keys recursively, so headers, query, and
	// body can be logged as-is.
	c.log.Info(ctx, "request",
		observe.Field{Key: "correlation_id", Value: correlationID},
		observe.Field{Key: "method", Value: req.Method},
		observe.Field{Key: "path", Value: req.Path},
		observe.Field{Key: "attempt", Value: attempt},
		observe.Field{Key: "query", Value: map[string][]string(req.Query)},
		observe.Field{Key: "headers", Value: map[string][]string(hreq.Header)},
		observe.Field{Key: "body", Value: req.Body},
	)

	start := time.Now()
	hresp, err := c.http.Do(hreq)
	latency := time.Since(start)

	c.metrics.latency.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	))

	if err != nil {
		c.log.Error(ctx, "attempt failed",
			observe.Field{Key: "correlation_id", Value: correlationID},
			observe.Field{Key: "method", Value: req.Method},
			observe.Field{Key: "path", Value: req.Path},
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "latency_ms", Value: latency.Milliseconds()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, &TransientError{Err: err}
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(hresp.Body, 10<<20))
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	c.log.Info(ctx, "response",
		observe.Field{Key: "correlation_id", Value: correlationID},
		observe.Field{Key: "method", Value: req.Method},
		observe.Field{Key: "path", Value: req.Path},
		observe.Field{Key: "attempt", Value: attempt},
		observe.Field{Key: "status", Value: hresp.StatusCode},
		observe.Field{Key: "latency_ms", Value: latency.Milliseconds()},
	)

	switch {
	case hresp.StatusCode >= 200 && hresp.StatusCode < 300:
		return &Response{
			StatusCode: hresp.StatusCode,
			Header:     hresp.Header,
			Body:       body,
		}, nil

	case hresp.StatusCode == http.StatusUnauthorized:
		var oe oauthErrorResponse
		_ = json.Unmarshal(body, &oe)
		return nil, &AuthError{
			Code:        oe.Error,
			Description: oe.ErrorDescription,
			StatusCode:  http.StatusUnauthorized,
		}

	case hresp.StatusCode == http.StatusTooManyRequests:
		c.metrics.rateLimitEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.Path),
		))
		return nil, &RateLimitError{
			StatusCode: hresp.StatusCode,
			RetryAfter: parseRetryAfter(hresp.Header.Get("Retry-After")),
			Body:       string(body),
		}

	case hresp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: hresp.StatusCode}

	default:
		return nil, &FatalAPIError{
			StatusCode: hresp.StatusCode,
			Body:       string(body),
		}
	}
}

// parseRetryAfter parses a Retry-After header in seconds. Returns zero for
// absent or unparseable values.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
