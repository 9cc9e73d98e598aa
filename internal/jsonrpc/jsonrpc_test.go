package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalRequestValid(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"mcp_call_tool","params":{"tool":"discord.send_message","params":{"channel_id":"123","content":"hi"}}}`)
	req, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != MethodCallTool {
		t.Fatalf("expected method %q, got %q", MethodCallTool, req.Method)
	}
	if req.ID == nil {
		t.Fatal("request id must survive decoding")
	}
}

func TestUnmarshalRequestRepairsSloppyJSON(t *testing.T) {
	// Trailing comma, the most common agent emission defect.
	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"mcp_list_tools",}`)
	req, err := UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("expected repair to recover the request, got %v", err)
	}
	if req.Method != MethodListTools {
		t.Fatalf("unexpected method %q", req.Method)
	}
}

func TestUnmarshalRequestUnrecoverable(t *testing.T) {
	_, err := UnmarshalRequest([]byte(`"just a string"`))
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != ParseError && rpcErr.Code != InvalidRequest {
		t.Fatalf("unexpected code %d", rpcErr.Code)
	}
}

func TestUnmarshalRequestWrongVersion(t *testing.T) {
	_, err := UnmarshalRequest([]byte(`{"jsonrpc":"1.0","id":1,"method":"mcp_list_tools"}`))
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != InvalidRequest {
		t.Fatalf("expected InvalidRequest, got %d", rpcErr.Code)
	}
}

func TestDecodeCallToolParams(t *testing.T) {
	raw := json.RawMessage(`{"tool":"discord.list_channels","params":{"guild_id":"42"}}`)
	params, err := DecodeCallToolParams(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Tool != "discord.list_channels" {
		t.Fatalf("unexpected tool %q", params.Tool)
	}
	if params.Params["guild_id"] != "42" {
		t.Fatalf("params not decoded: %v", params.Params)
	}
}

func TestDecodeCallToolParamsMissingTool(t *testing.T) {
	_, err := DecodeCallToolParams(json.RawMessage(`{"params":{}}`))
	if err == nil {
		t.Fatal("expected error for missing tool name")
	}
}

func TestDecodeCallToolParamsDefaultsEmptyParams(t *testing.T) {
	params, err := DecodeCallToolParams(json.RawMessage(`{"tool":"discord.list_guilds"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Params == nil {
		t.Fatal("expected non-nil params map")
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse("req-1", map[string]any{"ok": true})
	if resp.JSONRPC != Version {
		t.Fatalf("unexpected version %q", resp.JSONRPC)
	}
	if resp.Error != nil {
		t.Fatal("expected success response")
	}
	if resp.ID != "req-1" {
		t.Fatalf("id not echoed: %v", resp.ID)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(7, MethodNotFound, "unknown tool", map[string]any{"tool": "discord.nonexistent"})
	if resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != MethodNotFound {
		t.Fatalf("unexpected code %d", resp.Error.Code)
	}
}
