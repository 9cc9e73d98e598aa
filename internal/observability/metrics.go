package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages the gateway's metrics.
type MetricsCollector struct {
	meter metric.Meter

	// Tool dispatch metrics
	toolInvocations metric.Int64Counter
	toolLatency     metric.Float64Histogram

	// Upstream transport metrics
	upstreamRequests metric.Int64Counter
	upstreamLatency  metric.Float64Histogram
	upstreamRetries  metric.Int64Counter

	// Rate limit metrics
	rateLimitWaits metric.Float64Histogram

	// Cache metrics
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter

	// Audit metrics
	auditDrops metric.Int64Counter
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewMetricsCollector creates a new metrics collector backed by the
// Prometheus exporter. When disabled every recording method is a no-op.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("concord")

	mc := &MetricsCollector{meter: meter}

	mc.toolInvocations, err = meter.Int64Counter(
		"concord.tool.invocations.total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool invocation counter: %w", err)
	}

	mc.toolLatency, err = meter.Float64Histogram(
		"concord.tool.latency",
		metric.WithDescription("End-to-end tool invocation latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool latency histogram: %w", err)
	}

	mc.upstreamRequests, err = meter.Int64Counter(
		"concord.upstream.requests.total",
		metric.WithDescription("Total number of upstream HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request counter: %w", err)
	}

	mc.upstreamLatency, err = meter.Float64Histogram(
		"concord.upstream.latency",
		metric.WithDescription("Upstream HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream latency histogram: %w", err)
	}

	mc.upstreamRetries, err = meter.Int64Counter(
		"concord.upstream.retries.total",
		metric.WithDescription("Total number of upstream retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry counter: %w", err)
	}

	mc.rateLimitWaits, err = meter.Float64Histogram(
		"concord.ratelimit.wait",
		metric.WithDescription("Time spent waiting for rate limit admission"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit wait histogram: %w", err)
	}

	mc.cacheHits, err = meter.Int64Counter(
		"concord.cache.hits.total",
		metric.WithDescription("Response cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hit counter: %w", err)
	}

	mc.cacheMisses, err = meter.Int64Counter(
		"concord.cache.misses.total",
		metric.WithDescription("Response cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache miss counter: %w", err)
	}

	mc.auditDrops, err = meter.Int64Counter(
		"concord.audit.drops.total",
		metric.WithDescription("Audit records dropped because the sink buffer was full"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit drop counter: %w", err)
	}

	return mc, nil
}

// RecordToolInvocation records one completed invocation.
func (mc *MetricsCollector) RecordToolInvocation(ctx context.Context, tool, outcome string, latency time.Duration) {
	if mc.toolInvocations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	mc.toolInvocations.Add(ctx, 1, attrs)
	mc.toolLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
}

// RecordUpstreamRequest records one upstream HTTP round trip.
func (mc *MetricsCollector) RecordUpstreamRequest(ctx context.Context, route string, status int, latency time.Duration) {
	if mc.upstreamRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	mc.upstreamRequests.Add(ctx, 1, attrs)
	mc.upstreamLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
}

// RecordRetry records a retry attempt for a route.
func (mc *MetricsCollector) RecordRetry(ctx context.Context, route string) {
	if mc.upstreamRetries == nil {
		return
	}
	mc.upstreamRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// RecordRateLimitWait records time spent blocked on bucket admission.
func (mc *MetricsCollector) RecordRateLimitWait(ctx context.Context, bucket string, wait time.Duration) {
	if mc.rateLimitWaits == nil {
		return
	}
	mc.rateLimitWaits.Record(ctx, float64(wait.Milliseconds()),
		metric.WithAttributes(attribute.String("bucket", bucket)))
}

// RecordCacheHit records a response-cache hit for a tool.
func (mc *MetricsCollector) RecordCacheHit(ctx context.Context, tool string) {
	if mc.cacheHits == nil {
		return
	}
	mc.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordCacheMiss records a response-cache miss for a tool.
func (mc *MetricsCollector) RecordCacheMiss(ctx context.Context, tool string) {
	if mc.cacheMisses == nil {
		return
	}
	mc.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordAuditDrop records a dropped audit record.
func (mc *MetricsCollector) RecordAuditDrop(ctx context.Context) {
	if mc.auditDrops == nil {
		return
	}
	mc.auditDrops.Add(ctx, 1)
}
