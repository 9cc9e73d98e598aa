package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// JSON-RPC 2.0 specification: https://www.jsonrpc.org/specification

// Version is the JSON-RPC version used by the gateway.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	ParseError     = -32700 // Invalid JSON was received
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist / is not available
	InvalidParams  = -32602 // Invalid method parameter(s)
	InternalError  = -32603 // Internal JSON-RPC error
	ServerError    = -32000 // Generic server error
)

// Gateway methods.
const (
	MethodCallTool  = "mcp_call_tool"
	MethodListTools = "mcp_list_tools"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // String, number, or null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// CallToolParams are the params of an mcp_call_tool request.
type CallToolParams struct {
	Tool    string         `json:"tool"`
	Version string         `json:"version,omitempty"`
	Params  map[string]any `json:"params"`
}

// NewResponse creates a successful JSON-RPC response.
func NewResponse(id any, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates a JSON-RPC error response.
func NewErrorResponse(id any, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// UnmarshalRequest parses a JSON-RPC request. Agent callers routinely emit
// sloppy JSON (trailing commas, single quotes), so a failed decode gets one
// repair pass before the request is rejected with ParseError.
func UnmarshalRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, &RPCError{
				Code:    ParseError,
				Message: "Failed to parse JSON-RPC request",
				Data:    err.Error(),
			}
		}
		if err := json.Unmarshal([]byte(repaired), &req); err != nil {
			return nil, &RPCError{
				Code:    ParseError,
				Message: "Failed to parse JSON-RPC request",
				Data:    err.Error(),
			}
		}
	}

	if req.JSONRPC != Version {
		return nil, &RPCError{
			Code:    InvalidRequest,
			Message: fmt.Sprintf("Invalid JSON-RPC version: %s", req.JSONRPC),
		}
	}

	return &req, nil
}

// DecodeCallToolParams decodes and minimally checks mcp_call_tool params.
func DecodeCallToolParams(raw json.RawMessage) (*CallToolParams, error) {
	if len(raw) == 0 {
		return nil, &RPCError{
			Code:    InvalidParams,
			Message: "Missing params for mcp_call_tool",
		}
	}
	var params CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{
			Code:    InvalidParams,
			Message: "Malformed params for mcp_call_tool",
			Data:    err.Error(),
		}
	}
	if params.Tool == "" {
		return nil, &RPCError{
			Code:    InvalidParams,
			Message: "Missing tool name",
		}
	}
	if params.Params == nil {
		params.Params = map[string]any{}
	}
	return &params, nil
}
