package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"concord/internal/audit"
	"concord/internal/cache"
	"concord/internal/dispatch"
	"concord/internal/jsonrpc"
	"concord/internal/logging"
	"concord/internal/registry"
	"concord/internal/schema"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New()
	reg.MustRegister(&registry.Descriptor{
		Name:    "discord.echo",
		Version: "1.0.0",
		Schema: &schema.Object{Fields: []schema.Field{
			schema.String("text", "text to echo", true, 0),
		}},
		Class: registry.Read,
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"echo": params["text"]}, nil
		},
	})
	sink := audit.SinkFunc(func(audit.Record) error { return nil })
	auditLog := audit.NewLogger(sink, logging.Nop())
	t.Cleanup(func() { auditLog.Close() })
	dispatcher := dispatch.New(reg, cache.New(logging.Nop()), auditLog, logging.Nop())
	return New(dispatcher, DefaultConfig(), logging.Nop())
}

func postRPC(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, *jsonrpc.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return w, &resp
}

func TestCallToolOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, resp := postRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"mcp_call_tool","params":{"tool":"discord.echo","params":{"text":"hi"}}}`)

	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["echo"] != "hi" {
		t.Fatalf("unexpected result %v", resp.Result)
	}
}

func TestMalformedBodyGetsRepaired(t *testing.T) {
	s := newTestServer(t)
	// Trailing comma: invalid JSON that the repair pass can recover.
	_, resp := postRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"mcp_list_tools",}`)
	if resp.Error != nil {
		t.Fatalf("repairable body should succeed, got %+v", resp.Error)
	}
}

func TestUnparseableBodyReturnsParseError(t *testing.T) {
	s := newTestServer(t)
	_, resp := postRPC(t, s, "\x00\x01")
	if resp.Error == nil || resp.Error.Code != jsonrpc.ParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}
}

func TestUnknownMethodOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, resp := postRPC(t, s, `{"jsonrpc":"2.0","id":1,"method":"mcp_restart"}`)
	if resp.Error == nil || resp.Error.Code != jsonrpc.MethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp)
	}
}

func TestRequestIDEchoedAndGenerated(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"mcp_list_tools"}`))
	req.Header.Set("X-Request-ID", "req-42")
	s.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("caller request ID not echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"mcp_list_tools"}`))
	s.Handler().ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request ID")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.dispatcher.Health().SetUpstream(true)
	s.dispatcher.Health().Observe("ok", 3*time.Millisecond)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if status["status"] != "ok" {
		t.Fatalf("unexpected health %v", status)
	}
}

func TestHealthDegradedWhenUpstreamDown(t *testing.T) {
	s := newTestServer(t)
	s.dispatcher.Health().SetUpstream(false)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
