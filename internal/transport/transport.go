// Package transport issues upstream HTTP calls through rate-limit admission,
// bounded retry with exponential backoff, and a circuit breaker.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	gwerrors "concord/internal/errors"
	"concord/internal/logging"
	"concord/internal/observability"
	"concord/internal/ratelimit"
)

const defaultMaxAliases = 1024

// Config holds the transport tunables. Backoff multipliers, jitter and the
// attempt ceiling are deployment-tunable rather than hard-coded.
type Config struct {
	BaseURL          string
	Token            string
	UserAgent        string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	JitterFactor     float64
	MaxAdmitWait     time.Duration
	RequestTimeout   time.Duration
	MaxResponseBytes int64
	Breaker          gwerrors.CircuitBreakerConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://discord.com/api/v10",
		UserAgent:        "Concord/1.0.0",
		MaxAttempts:      3,
		BaseDelay:        1 * time.Second,
		MaxDelay:         30 * time.Second,
		JitterFactor:     0.25,
		MaxAdmitWait:     10 * time.Second,
		RequestTimeout:   30 * time.Second,
		MaxResponseBytes: 8 << 20,
		Breaker:          gwerrors.DefaultCircuitBreakerConfig(),
	}
}

// Request describes one upstream call. The dispatcher resolves the route
// template and bucket key before handing it to the transport.
type Request struct {
	Method    string
	Path      string     // resolved path, e.g. /channels/123/messages
	RouteName string     // route template id for metrics and logs
	BucketKey string     // route template + major resource id
	Query     url.Values // optional query string
	Major     string     // major resource id scoping the bucket, may be empty
	Body      any        // JSON-marshalled when non-nil

	// Retryable reflects the tool's idempotency class. Plain WRITE tools
	// never auto-retry: an ambiguous failure after the request was sent
	// must surface rather than risk a duplicate side effect.
	Retryable bool
}

// Sleeper waits for d or until ctx is done. Injectable so tests never sleep.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transport executes upstream requests.
type Transport struct {
	config  Config
	client  *http.Client
	tracker *ratelimit.Tracker
	breaker *gwerrors.CircuitBreaker
	logger  logging.Logger
	metrics *observability.MetricsCollector
	sleep   Sleeper

	// aliases maps a derived bucket key to the upstream-reported bucket
	// id once a response has revealed it. LRU-bounded like the tracker's
	// bucket table so long-lived processes stay bounded.
	aliases *lru.Cache[string, string]
}

// Option configures a Transport.
type Option func(*Transport)

// WithSleeper injects an alternative wait function.
func WithSleeper(sleep Sleeper) Option {
	return func(t *Transport) { t.sleep = sleep }
}

// WithHTTPClient injects an alternative HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) { t.client = client }
}

// WithMetrics injects the metrics collector.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(t *Transport) { t.metrics = metrics }
}

// New creates a transport backed by tracker.
func New(config Config, tracker *ratelimit.Tracker, logger logging.Logger, opts ...Option) *Transport {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	aliases, _ := lru.New[string, string](defaultMaxAliases)
	t := &Transport{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		tracker: tracker,
		breaker: gwerrors.NewCircuitBreaker("discord-api", config.Breaker),
		logger:  logging.OrNop(logger),
		metrics: &observability.MetricsCollector{},
		sleep:   defaultSleeper,
		aliases: aliases,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do executes req and returns the raw response body of a 2xx response.
// Every response updates the rate-limit tracker before the body is
// inspected, so quota state stays current on error paths too.
func (t *Transport) Do(ctx context.Context, req Request) ([]byte, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= t.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			t.metrics.RecordRetry(ctx, req.RouteName)
		}

		if err := t.admit(ctx, t.bucketKey(req)); err != nil {
			return nil, err
		}

		body, status, retryAfter, err := t.send(ctx, req)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, &gwerrors.CancelledError{Err: ctx.Err()}
		}

		// Non-retryable upstream rejections surface immediately.
		var rejected *gwerrors.UpstreamRejectedError
		if errors.As(err, &rejected) {
			return nil, err
		}

		lastErr = err
		if status > 0 {
			lastStatus = status
		}

		if !req.Retryable {
			if status == http.StatusTooManyRequests {
				return nil, &gwerrors.RateLimitedError{Bucket: req.BucketKey, RetryAfter: retryAfter}
			}
			return nil, &gwerrors.UpstreamUnavailableError{Status: status, Attempts: attempt, Err: err}
		}
		if !gwerrors.IsRetryable(err) {
			return nil, &gwerrors.UpstreamUnavailableError{Status: status, Attempts: attempt, Err: err}
		}
		if attempt == t.config.MaxAttempts {
			break
		}

		// A 429's Retry-After is authoritative and overrides computed backoff.
		delay := t.backoff(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		t.logger.Warn("Attempt %d for %s failed (%v), retrying in %s", attempt, req.RouteName, err, delay)
		if err := t.sleep(ctx, delay); err != nil {
			return nil, &gwerrors.CancelledError{Err: err}
		}
	}

	return nil, &gwerrors.UpstreamUnavailableError{
		Status:   lastStatus,
		Attempts: t.config.MaxAttempts,
		Err:      lastErr,
	}
}

// admit consults the tracker and waits when required, failing fast with
// RateLimited when the wait would exceed the configured maximum. The global
// and per-bucket windows can be exhausted at once, so it loops until the
// tracker clears the send entirely.
func (t *Transport) admit(ctx context.Context, bucketKey string) error {
	for {
		wait := t.tracker.Admit(bucketKey)
		if wait == 0 {
			return nil
		}
		if t.config.MaxAdmitWait > 0 && wait > t.config.MaxAdmitWait {
			return &gwerrors.RateLimitedError{Bucket: bucketKey, RetryAfter: wait}
		}
		t.metrics.RecordRateLimitWait(ctx, bucketKey, wait)
		if err := t.sleep(ctx, wait); err != nil {
			return &gwerrors.CancelledError{Err: err}
		}
	}
}

// send performs exactly one HTTP round trip. It returns the response body on
// 2xx; otherwise an error plus the status and any Retry-After hint.
func (t *Transport) send(ctx context.Context, req Request) (body []byte, status int, retryAfter time.Duration, err error) {
	if err := t.breaker.Allow(); err != nil {
		return nil, 0, 0, err
	}

	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, 0, 0, err
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		// Caller cancellation says nothing about upstream health.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.breaker.Mark(err)
		}
		t.metrics.RecordUpstreamRequest(ctx, req.RouteName, 0, latency)
		return nil, 0, 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	// Update quota state before looking at the body, error paths included.
	headers := ParseRateLimitHeaders(resp.Header)
	if headers.Present {
		if headers.Bucket != "" {
			// The upstream-reported bucket id supersedes the derived key:
			// distinct routes can share one real bucket.
			t.aliases.Add(req.BucketKey, scopedBucket(headers.Bucket, req.Major))
		}
		t.tracker.Observe(t.bucketKey(req), headers.Remaining, headers.Limit, headers.ResetAfter, headers.Global)
	}

	t.metrics.RecordUpstreamRequest(ctx, req.RouteName, resp.StatusCode, latency)
	t.logger.Debug("%s %s -> %d (%s, remaining=%d)",
		req.Method, req.Path, resp.StatusCode, latency, headers.Remaining)

	if isBreakerFailureStatus(resp.StatusCode) {
		t.breaker.Mark(fmt.Errorf("http status %d", resp.StatusCode))
	} else {
		t.breaker.Mark(nil)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, readErr := ReadAllWithLimit(resp.Body, t.config.MaxResponseBytes)
		if readErr != nil {
			return nil, resp.StatusCode, 0, readErr
		}
		return data, resp.StatusCode, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter = headers.RetryAfter
		if retryAfter == 0 {
			retryAfter = time.Second
		}
		return nil, resp.StatusCode, retryAfter, &gwerrors.HTTPStatusError{
			Status:     resp.StatusCode,
			RetryAfter: retryAfter,
		}

	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, 0, &gwerrors.HTTPStatusError{Status: resp.StatusCode}

	default:
		message := upstreamMessage(resp)
		return nil, resp.StatusCode, 0, &gwerrors.UpstreamRejectedError{
			Status:  resp.StatusCode,
			Message: message,
		}
	}
}

func (t *Transport) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := t.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var bodyReader *bytes.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var httpReq *http.Request
	var err error
	if bodyReader != nil {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, u, nil)
	}
	if err != nil {
		return nil, err
	}

	if t.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bot "+t.config.Token)
	}
	httpReq.Header.Set("User-Agent", t.config.UserAgent)
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// backoff computes the delay before the next attempt: base doubling per
// attempt, capped, with symmetric random jitter.
func (t *Transport) backoff(attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(t.config.BaseDelay) * multiplier)
	if delay > t.config.MaxDelay {
		delay = t.config.MaxDelay
	}
	if t.config.JitterFactor > 0 {
		jitter := float64(delay) * t.config.JitterFactor
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
		if delay < 0 {
			delay = t.config.BaseDelay
		}
		if delay > t.config.MaxDelay {
			delay = t.config.MaxDelay
		}
	}
	return delay
}

// bucketKey resolves the effective rate-limit key for req, preferring the
// upstream-reported bucket id once one has been observed.
func (t *Transport) bucketKey(req Request) string {
	if alias, ok := t.aliases.Get(req.BucketKey); ok {
		return alias
	}
	return req.BucketKey
}

func scopedBucket(bucket, major string) string {
	if major == "" {
		return bucket
	}
	return bucket + ":" + major
}

func isBreakerFailureStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// upstreamMessage extracts the human-readable message of a 4xx body.
func upstreamMessage(resp *http.Response) string {
	data, err := ReadAllWithLimit(resp.Body, 64<<10)
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}

// RateLimitHeaders carries the parsed rate-limit bookkeeping of a response.
type RateLimitHeaders struct {
	Present    bool
	Remaining  int
	Limit      int
	ResetAfter time.Duration
	Bucket     string
	Global     bool
	RetryAfter time.Duration
}

// ParseRateLimitHeaders reads the upstream's rate-limit fields. Missing or
// malformed headers yield Present=false so callers skip the observe.
func ParseRateLimitHeaders(h http.Header) RateLimitHeaders {
	out := RateLimitHeaders{}

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			out.RetryAfter = time.Duration(secs * float64(time.Second))
		}
	}

	remaining := h.Get("X-RateLimit-Remaining")
	resetAfter := h.Get("X-RateLimit-Reset-After")
	if remaining == "" || resetAfter == "" {
		return out
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return out
	}
	reset, err := strconv.ParseFloat(resetAfter, 64)
	if err != nil {
		return out
	}

	out.Present = true
	out.Remaining = rem
	out.ResetAfter = time.Duration(reset * float64(time.Second))
	out.Bucket = h.Get("X-RateLimit-Bucket")
	out.Global = strings.EqualFold(h.Get("X-RateLimit-Global"), "true")
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			out.Limit = limit
		}
	}
	return out
}
