// Package dispatch runs tool invocations through resolution, validation,
// caching, execution, sanitization and audit, and shapes the JSON-RPC
// response.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"concord/internal/audit"
	"concord/internal/cache"
	gwerrors "concord/internal/errors"
	"concord/internal/health"
	"concord/internal/jsonrpc"
	"concord/internal/logging"
	"concord/internal/observability"
	"concord/internal/registry"
	"concord/internal/sanitize"
)

// state tracks an invocation's progress through the pipeline.
type state int

const (
	stateReceived state = iota
	stateResolved
	stateValidated
	stateCacheHit
	stateExecuting
	stateSanitizing
	stateAudited
	stateResponded
)

func (s state) String() string {
	switch s {
	case stateReceived:
		return "received"
	case stateResolved:
		return "resolved"
	case stateValidated:
		return "validated"
	case stateCacheHit:
		return "cache_hit"
	case stateExecuting:
		return "executing"
	case stateSanitizing:
		return "sanitizing"
	case stateAudited:
		return "audited"
	case stateResponded:
		return "responded"
	default:
		return "unknown"
	}
}

// Dispatcher coordinates one invocation end to end. Construction wires the
// shared components; per-invocation state lives on the stack.
type Dispatcher struct {
	registry *registry.Registry
	cache    *cache.Cache
	audit    *audit.Logger
	health   *health.Monitor
	logger   logging.Logger
	metrics  *observability.MetricsCollector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics injects the metrics collector.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// WithHealth injects the health monitor.
func WithHealth(monitor *health.Monitor) Option {
	return func(d *Dispatcher) { d.health = monitor }
}

// New creates a dispatcher over the given registry, cache and audit logger.
func New(reg *registry.Registry, responseCache *cache.Cache, auditLog *audit.Logger, logger logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		cache:    responseCache,
		audit:    auditLog,
		health:   health.NewMonitor(),
		logger:   logging.OrNop(logger),
		metrics:  &observability.MetricsCollector{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Health exposes the monitor backing /health.
func (d *Dispatcher) Health() *health.Monitor { return d.health }

// Handle routes one decoded JSON-RPC request.
func (d *Dispatcher) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	switch req.Method {
	case jsonrpc.MethodCallTool:
		params, err := jsonrpc.DecodeCallToolParams(req.Params)
		if err != nil {
			var rpcErr *jsonrpc.RPCError
			if errors.As(err, &rpcErr) {
				return jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			}
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.InvalidParams, err.Error(), nil)
		}
		return d.CallTool(ctx, req.ID, params)
	case jsonrpc.MethodListTools:
		return jsonrpc.NewResponse(req.ID, d.ListTools())
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.MethodNotFound, "Unknown method: "+req.Method, nil)
	}
}

// CallTool runs the invocation pipeline for one tool call.
func (d *Dispatcher) CallTool(ctx context.Context, id any, params *jsonrpc.CallToolParams) *jsonrpc.Response {
	start := time.Now()
	current := stateReceived
	requestID := observability.RequestIDFromContext(ctx)
	ctx = observability.ContextWithTool(ctx, params.Tool)

	finish := func(desc *registry.Descriptor, result any, cacheHit bool, err error) *jsonrpc.Response {
		reached := current
		latency := time.Since(start)
		outcome := "ok"
		errText := ""
		if err != nil {
			outcome = gwerrors.Kind(err)
			errText = err.Error()
		}

		version := params.Version
		if desc != nil {
			version = desc.Version
		}
		// Exactly one audit record per invocation, success or not.
		d.audit.Append(audit.Record{
			Time:      time.Now().UTC(),
			RequestID: requestID,
			Tool:      params.Tool,
			Version:   version,
			Outcome:   outcome,
			CacheHit:  cacheHit,
			LatencyMS: latency.Milliseconds(),
			Params:    audit.Redact(params.Params),
			Error:     errText,
		})
		current = stateAudited

		d.metrics.RecordToolInvocation(ctx, params.Tool, outcome, latency)
		d.health.Observe(outcome, latency)
		current = stateResponded

		if err != nil {
			d.logger.Warn("Tool %s failed after %s in state %s: %v", params.Tool, latency, reached, err)
			return jsonrpc.NewErrorResponse(id, gwerrors.CodeOf(err), errText, errorData(err))
		}
		d.logger.Debug("Tool %s completed in %s (cache_hit=%v)", params.Tool, latency, cacheHit)
		return jsonrpc.NewResponse(id, result)
	}

	desc, err := d.registry.Resolve(params.Tool, params.Version)
	if err != nil {
		return finish(nil, nil, false, err)
	}
	current = stateResolved

	validated, err := desc.Schema.Validate(desc.Name, params.Params)
	if err != nil {
		return finish(desc, nil, false, err)
	}
	current = stateValidated

	if ctx.Err() != nil {
		return finish(desc, nil, false, &gwerrors.CancelledError{Err: ctx.Err()})
	}

	var resources []string
	if desc.Resources != nil {
		resources = desc.Resources(validated)
	}

	execute := func(ctx context.Context) (any, error) {
		raw, err := desc.Handler(ctx, validated)
		if err != nil {
			return nil, mapCancellation(ctx, err)
		}
		// Neutralize mention triggers in everything the caller will see.
		return sanitizeResult(raw)
	}

	var result any
	cacheHit := false
	if desc.Class.Cacheable() && desc.CacheTTL > 0 {
		key := cache.Key(desc.Name+"@"+desc.Version, validated)
		result, cacheHit, err = d.cache.GetOrLoad(ctx, key, desc.Name, desc.CacheTTL, resources, execute)
		if cacheHit {
			current = stateCacheHit
		} else {
			current = stateExecuting
		}
	} else {
		current = stateExecuting
		result, err = execute(ctx)
	}
	if err != nil {
		return finish(desc, nil, cacheHit, err)
	}
	current = stateSanitizing

	// A write that succeeded made cached reads of its resources stale.
	if desc.Class != registry.Read && len(resources) > 0 {
		d.cache.Invalidate(resources...)
	}

	return finish(desc, result, cacheHit, nil)
}

// ToolDefinition is one entry of an mcp_list_tools result.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Idempotency string         `json:"idempotency"`
	Cacheable   bool           `json:"cacheable"`
	InputSchema map[string]any `json:"input_schema"`
}

// ListTools returns the latest version of every registered tool.
func (d *Dispatcher) ListTools() map[string]any {
	descriptors := d.registry.List()
	tools := make([]ToolDefinition, 0, len(descriptors))
	for _, desc := range descriptors {
		tools = append(tools, ToolDefinition{
			Name:        desc.Name,
			Version:     desc.Version,
			Description: desc.Description,
			Idempotency: desc.Class.String(),
			Cacheable:   desc.Class.Cacheable() && desc.CacheTTL > 0,
			InputSchema: desc.Schema.JSONSchema(),
		})
	}
	return map[string]any{"tools": tools, "count": len(tools)}
}

// sanitizeResult serializes a handler result and neutralizes mention
// triggers across the whole payload. Operating on the serialized form
// covers every nested string without reflecting over result types.
func sanitizeResult(result any) (any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(sanitize.Text(string(data))), nil
}

// mapCancellation folds a context cancellation surfaced by a handler into
// the Cancelled taxonomy unless the error is already classified.
func mapCancellation(ctx context.Context, err error) error {
	var coded gwerrors.Coded
	if errors.As(err, &coded) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &gwerrors.CancelledError{Err: err}
	}
	return err
}

// errorData builds the machine-readable data member of an error response.
func errorData(err error) any {
	var validation *gwerrors.ValidationError
	if errors.As(err, &validation) {
		return map[string]any{"fields": validation.Fields}
	}
	var limited *gwerrors.RateLimitedError
	if errors.As(err, &limited) {
		return map[string]any{
			"bucket":         limited.Bucket,
			"retry_after_ms": limited.RetryAfter.Milliseconds(),
		}
	}
	var unavailable *gwerrors.UpstreamUnavailableError
	if errors.As(err, &unavailable) {
		return map[string]any{
			"status":   unavailable.Status,
			"attempts": unavailable.Attempts,
		}
	}
	var rejected *gwerrors.UpstreamRejectedError
	if errors.As(err, &rejected) {
		return map[string]any{
			"status":  rejected.Status,
			"message": rejected.Message,
		}
	}
	return nil
}
