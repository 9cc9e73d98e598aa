package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&UnknownToolError{Tool: "discord.nonexistent"}, CodeUnknownTool},
		{&UnknownVersionError{Tool: "discord.send_message", Version: "v9"}, CodeUnknownTool},
		{&ValidationError{Tool: "discord.send_message"}, CodeValidation},
		{&RateLimitedError{Bucket: "channels:123", RetryAfter: time.Second}, CodeRateLimited},
		{&UpstreamUnavailableError{Status: 503, Attempts: 3}, CodeUpstreamUnavailable},
		{&UpstreamRejectedError{Status: 403, Message: "Missing Permissions"}, CodeUpstreamRejected},
		{&CancelledError{Err: errors.New("context canceled")}, CodeCancelled},
		{errors.New("plain"), CodeInternal},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Errorf("CodeOf(%T) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &UpstreamRejectedError{Status: 404, Message: "Unknown Channel"})
	if got := CodeOf(err); got != CodeUpstreamRejected {
		t.Fatalf("CodeOf(wrapped) = %d, want %d", got, CodeUpstreamRejected)
	}
}

func TestKind(t *testing.T) {
	if got := Kind(nil); got != "success" {
		t.Fatalf("Kind(nil) = %q", got)
	}
	if got := Kind(&UnknownToolError{Tool: "x"}); got != "unknown_tool" {
		t.Fatalf("Kind(UnknownToolError) = %q", got)
	}
	if got := Kind(&ValidationError{}); got != "validation_error" {
		t.Fatalf("Kind(ValidationError) = %q", got)
	}
	if got := Kind(errors.New("boom")); got != "internal_error" {
		t.Fatalf("Kind(plain) = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil must not be retryable")
	}
	if !IsRetryable(&HTTPStatusError{Status: 503}) {
		t.Fatal("503 must be retryable")
	}
	if !IsRetryable(&HTTPStatusError{Status: 429, RetryAfter: time.Second}) {
		t.Fatal("429 must be retryable")
	}
	if IsRetryable(&HTTPStatusError{Status: 403}) {
		t.Fatal("403 must not be retryable")
	}
	if IsRetryable(&UpstreamRejectedError{Status: 404}) {
		t.Fatal("rejected errors must not be retryable")
	}
	if IsRetryable(&CancelledError{Err: errors.New("context canceled")}) {
		t.Fatal("cancellation must not be retryable")
	}
	if !IsRetryable(errors.New("connection refused")) {
		t.Fatal("connection errors must be retryable")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Tool: "discord.send_message",
		Fields: []FieldError{
			{Field: "channel_id", Message: "required"},
			{Field: "content", Message: "must be a string"},
		},
	}
	want := "invalid parameters for discord.send_message: channel_id: required; content: must be a string"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
