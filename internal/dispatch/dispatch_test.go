package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"concord/internal/audit"
	"concord/internal/cache"
	gwerrors "concord/internal/errors"
	"concord/internal/jsonrpc"
	"concord/internal/logging"
	"concord/internal/registry"
	"concord/internal/schema"
)

type recordingSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *recordingSink) Write(record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) all() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Record(nil), s.records...)
}

type fixture struct {
	dispatcher *Dispatcher
	sink       *recordingSink
	auditLog   *audit.Logger
	calls      atomic.Int32
}

func newFixture(t *testing.T, descriptors ...*registry.Descriptor) *fixture {
	t.Helper()
	f := &fixture{sink: &recordingSink{}}
	reg := registry.New()
	for _, d := range descriptors {
		reg.MustRegister(d)
	}
	f.auditLog = audit.NewLogger(f.sink, logging.Nop())
	t.Cleanup(func() { f.auditLog.Close() })
	f.dispatcher = New(reg, cache.New(logging.Nop()), f.auditLog, logging.Nop())
	return f
}

func (f *fixture) readTool(name string, ttl time.Duration, result any) *registry.Descriptor {
	return &registry.Descriptor{
		Name:    name,
		Version: "1.0.0",
		Schema: &schema.Object{Fields: []schema.Field{
			schema.Snowflake("channel_id", "channel", true),
		}},
		Class:     registry.Read,
		CacheTTL:  ttl,
		Resources: func(params map[string]any) []string { return []string{params["channel_id"].(string)} },
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			f.calls.Add(1)
			return result, nil
		},
	}
}

func (f *fixture) flushAudit(t *testing.T) []audit.Record {
	t.Helper()
	if err := f.auditLog.Close(); err != nil {
		t.Fatalf("audit close: %v", err)
	}
	return f.sink.all()
}

func callParams(tool string, params map[string]any) *jsonrpc.CallToolParams {
	return &jsonrpc.CallToolParams{Tool: tool, Params: params}
}

func TestCallToolUnknownTool(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatcher.CallTool(context.Background(), 1, callParams("discord.nope", map[string]any{}))

	if resp.Error == nil || resp.Error.Code != gwerrors.CodeUnknownTool {
		t.Fatalf("expected unknown tool error, got %+v", resp)
	}
	records := f.flushAudit(t)
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(records))
	}
	if records[0].Outcome != "unknown_tool" {
		t.Fatalf("unexpected outcome %s", records[0].Outcome)
	}
}

func TestCallToolValidationError(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", time.Minute, "x"))

	resp := f.dispatcher.CallTool(context.Background(), 1, callParams("discord.read", map[string]any{
		"channel_id": "not-a-snowflake",
		"bogus":      true,
	}))
	if resp.Error == nil || resp.Error.Code != gwerrors.CodeValidation {
		t.Fatalf("expected validation error, got %+v", resp)
	}
	data := resp.Error.Data.(map[string]any)
	fields := data["fields"].([]gwerrors.FieldError)
	if len(fields) != 2 {
		t.Fatalf("expected 2 field errors, got %v", fields)
	}
	if f.calls.Load() != 0 {
		t.Fatal("handler must not run on invalid params")
	}
}

func TestCallToolCachesReads(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", time.Minute, map[string]any{"ok": true}))

	params := map[string]any{"channel_id": "123"}
	first := f.dispatcher.CallTool(context.Background(), 1, callParams("discord.read", params))
	second := f.dispatcher.CallTool(context.Background(), 2, callParams("discord.read", params))

	if first.Error != nil || second.Error != nil {
		t.Fatalf("unexpected errors %+v %+v", first.Error, second.Error)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", f.calls.Load())
	}

	records := f.flushAudit(t)
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	if records[0].CacheHit || !records[1].CacheHit {
		t.Fatalf("expected miss then hit, got %v %v", records[0].CacheHit, records[1].CacheHit)
	}
}

func TestCallToolWriteInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", time.Minute, "v"))
	f.dispatcher.registry.MustRegister(&registry.Descriptor{
		Name:    "discord.write",
		Version: "1.0.0",
		Schema: &schema.Object{Fields: []schema.Field{
			schema.Snowflake("channel_id", "channel", true),
		}},
		Class:     registry.Write,
		Resources: func(params map[string]any) []string { return []string{params["channel_id"].(string)} },
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"sent": true}, nil
		},
	})

	params := map[string]any{"channel_id": "123"}
	f.dispatcher.CallTool(context.Background(), 1, callParams("discord.read", params))
	f.dispatcher.CallTool(context.Background(), 2, callParams("discord.write", params))
	f.dispatcher.CallTool(context.Background(), 3, callParams("discord.read", params))

	if f.calls.Load() != 2 {
		t.Fatalf("write must invalidate the read cache, got %d upstream calls", f.calls.Load())
	}
}

func TestCallToolSanitizesResult(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", 0, map[string]any{
		"content": "hello @everyone, @here too",
	}))

	resp := f.dispatcher.CallTool(context.Background(), 1, callParams("discord.read", map[string]any{"channel_id": "123"}))
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), "@everyone") || strings.Contains(string(payload), "@here") {
		t.Fatalf("mention triggers leaked: %s", payload)
	}
	if !strings.Contains(string(payload), "＠everyone") {
		t.Fatalf("expected neutralized mention in %s", payload)
	}
}

func TestCallToolFailuresNotCached(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.dispatcher.registry.MustRegister(&registry.Descriptor{
		Name:    "discord.flaky",
		Version: "1.0.0",
		Schema: &schema.Object{Fields: []schema.Field{
			schema.Snowflake("channel_id", "channel", true),
		}},
		Class:    registry.Read,
		CacheTTL: time.Minute,
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			calls.Add(1)
			return nil, &gwerrors.UpstreamUnavailableError{Status: 502, Attempts: 3}
		},
	})

	params := map[string]any{"channel_id": "123"}
	for i := 0; i < 2; i++ {
		resp := f.dispatcher.CallTool(context.Background(), i, callParams("discord.flaky", params))
		if resp.Error == nil || resp.Error.Code != gwerrors.CodeUpstreamUnavailable {
			t.Fatalf("expected upstream error, got %+v", resp)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("failures must not be cached, got %d calls", calls.Load())
	}
}

func TestCallToolCancelled(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", 0, "v"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := f.dispatcher.CallTool(ctx, 1, callParams("discord.read", map[string]any{"channel_id": "123"}))
	if resp.Error == nil || resp.Error.Code != gwerrors.CodeCancelled {
		t.Fatalf("expected cancelled error, got %+v", resp)
	}
}

func TestCallToolAuditRedactsSecrets(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.CallTool(context.Background(), 1, callParams("discord.nope", map[string]any{
		"webhook_token": "very-secret",
		"channel_id":    "123",
	}))

	records := f.flushAudit(t)
	if records[0].Params["webhook_token"] != "[REDACTED]" {
		t.Fatalf("secret leaked into audit: %v", records[0].Params)
	}
	if records[0].Params["channel_id"] != "123" {
		t.Fatalf("non-secret params must survive: %v", records[0].Params)
	}
}

func TestHandleListTools(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.registry.MustRegister(f.readTool("discord.read", time.Minute, "v"))

	resp := f.dispatcher.Handle(context.Background(), &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      7,
		Method:  jsonrpc.MethodListTools,
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["count"] != 1 {
		t.Fatalf("unexpected count %v", result["count"])
	}
	tools := result["tools"].([]ToolDefinition)
	if tools[0].Name != "discord.read" || tools[0].Idempotency != "read" || !tools[0].Cacheable {
		t.Fatalf("unexpected definition %+v", tools[0])
	}
	if tools[0].InputSchema["additionalProperties"] != false {
		t.Fatal("schemas must be closed")
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	f := newFixture(t)
	resp := f.dispatcher.Handle(context.Background(), &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      1,
		Method:  "mcp_reboot",
	})
	if resp.Error == nil || resp.Error.Code != jsonrpc.MethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp)
	}
}

func TestHandleMissingToolName(t *testing.T) {
	f := newFixture(t)
	raw, _ := json.Marshal(map[string]any{"params": map[string]any{}})
	resp := f.dispatcher.Handle(context.Background(), &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      1,
		Method:  jsonrpc.MethodCallTool,
		Params:  raw,
	})
	if resp.Error == nil || resp.Error.Code != jsonrpc.InvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
}
