package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// JSON-RPC error codes for every failure the gateway can surface.
// Standard codes where the JSON-RPC spec defines one, the -320xx
// server-error range for gateway-specific outcomes.
const (
	CodeParseError          = -32700
	CodeInvalidRequest      = -32600
	CodeUnknownTool         = -32601
	CodeValidation          = -32602
	CodeInternal            = -32603
	CodeCancelled           = -32001
	CodeRateLimited         = -32029
	CodeUpstreamUnavailable = -32050
	CodeUpstreamRejected    = -32051
)

// UnknownToolError reports a tool name absent from the registry.
type UnknownToolError struct {
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Tool)
}

func (e *UnknownToolError) Code() int { return CodeUnknownTool }

// UnknownVersionError reports a known tool requested at an unregistered version.
type UnknownVersionError struct {
	Tool    string
	Version string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown version %q for tool %s", e.Version, e.Tool)
}

func (e *UnknownVersionError) Code() int { return CodeUnknownTool }

// FieldError describes a single failing parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every failing field of an invocation so a
// caller can fix all of them in one round-trip.
type ValidationError struct {
	Tool   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, strings.Join(parts, "; "))
}

func (e *ValidationError) Code() int { return CodeValidation }

// RateLimitedError is returned when the required admission wait exceeds
// the configured maximum, carrying the wait so the caller can back off.
type RateLimitedError struct {
	Bucket     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on bucket %s, retry after %s", e.Bucket, e.RetryAfter)
}

func (e *RateLimitedError) Code() int { return CodeRateLimited }

// UpstreamUnavailableError reports retries exhausted against a failing upstream.
type UpstreamUnavailableError struct {
	Status   int
	Attempts int
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable after %d attempts (last status %d): %v", e.Attempts, e.Status, e.Err)
}

func (e *UpstreamUnavailableError) Code() int { return CodeUpstreamUnavailable }

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// UpstreamRejectedError reports a non-retryable 4xx from the upstream,
// e.g. missing permissions or an unknown resource id.
type UpstreamRejectedError struct {
	Status  int
	Message string
}

func (e *UpstreamRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream rejected request (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream rejected request (%d)", e.Status)
}

func (e *UpstreamRejectedError) Code() int { return CodeUpstreamRejected }

// CancelledError reports that the caller went away before the invocation finished.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("invocation cancelled: %v", e.Err)
}

func (e *CancelledError) Code() int { return CodeCancelled }

func (e *CancelledError) Unwrap() error { return e.Err }

// Coded is implemented by every gateway error that maps to a JSON-RPC code.
type Coded interface {
	error
	Code() int
}

// CodeOf extracts the JSON-RPC code for err, defaulting to CodeInternal.
func CodeOf(err error) int {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// Kind returns the audit-friendly name of an error's category.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case isAs[*UnknownToolError](err):
		return "unknown_tool"
	case isAs[*UnknownVersionError](err):
		return "unknown_version"
	case isAs[*ValidationError](err):
		return "validation_error"
	case isAs[*RateLimitedError](err):
		return "rate_limited"
	case isAs[*UpstreamUnavailableError](err):
		return "upstream_unavailable"
	case isAs[*UpstreamRejectedError](err):
		return "upstream_rejected"
	case isAs[*CancelledError](err):
		return "cancelled"
	default:
		return "internal_error"
	}
}

func isAs[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// IsRetryable reports whether an upstream failure may be retried for
// READ and IDEMPOTENT_WRITE tools. Validation, resolution and
// cancellation never are; 429 and 5xx statuses plus transport-level
// network failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rejected *UpstreamRejectedError
	if errors.As(err, &rejected) {
		return false
	}
	var cancelled *CancelledError
	if errors.As(err, &cancelled) {
		return false
	}
	if status := StatusOf(err); status > 0 {
		return isRetryableStatus(status)
	}
	return isNetworkError(err)
}

// StatusOf extracts an HTTP status carried by a gateway error, 0 when absent.
func StatusOf(err error) int {
	var unavailable *UpstreamUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Status
	}
	var rejected *UpstreamRejectedError
	if errors.As(err, &rejected) {
		return rejected.Status
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		return status.Status
	}
	return 0
}

// HTTPStatusError is the raw per-attempt failure produced inside the
// transport before classification. It never escapes the transport.
type HTTPStatusError struct {
	Status     int
	Message    string
	RetryAfter time.Duration // populated from a 429's Retry-After header
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http status %d", e.Status)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "timeout", "deadline exceeded", "eof"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
