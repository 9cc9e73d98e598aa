package schema

import (
	"errors"
	"testing"

	gwerrors "concord/internal/errors"
)

func sendMessageShape() Object {
	return Object{Fields: []Field{
		Snowflake("channel_id", "target channel", true),
		String("content", "message body", true, 2000),
		Boolean("tts", "text to speech", false),
		Integer("limit", "page size", false, 1, 100),
	}}
}

func TestValidateAccepts(t *testing.T) {
	params, err := sendMessageShape().Validate("discord.send_message", map[string]any{
		"channel_id": "123456789",
		"content":    "hello",
		"tts":        false,
		"limit":      float64(50),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["channel_id"] != "123456789" {
		t.Fatalf("validated params missing channel_id: %v", params)
	}
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	_, err := sendMessageShape().Validate("discord.send_message", map[string]any{
		"channel_id": "not-a-snowflake",
		"tts":        "yes",
		"extra":      1,
	})
	var verr *gwerrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	// content missing, channel_id pattern, tts type, extra unknown.
	if len(verr.Fields) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(verr.Fields), verr.Fields)
	}
}

func TestValidateRejectsUnknownField(t *testing.T) {
	_, err := sendMessageShape().Validate("discord.send_message", map[string]any{
		"channel_id": "123",
		"content":    "hi",
		"channelid":  "123",
	})
	var verr *gwerrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Fields[0].Field != "channelid" {
		t.Fatalf("unexpected field: %v", verr.Fields)
	}
}

func TestValidateIntegerBounds(t *testing.T) {
	shape := sendMessageShape()
	base := map[string]any{"channel_id": "123", "content": "hi"}

	for _, tc := range []struct {
		limit any
		ok    bool
	}{
		{float64(1), true},
		{float64(100), true},
		{float64(0), false},
		{float64(101), false},
		{float64(1.5), false},
		{"50", false},
	} {
		params := map[string]any{"limit": tc.limit}
		for k, v := range base {
			params[k] = v
		}
		_, err := shape.Validate("discord.list_messages", params)
		if tc.ok && err != nil {
			t.Errorf("limit=%v: unexpected error %v", tc.limit, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("limit=%v: expected error", tc.limit)
		}
	}
}

func TestValidateMaxLen(t *testing.T) {
	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}
	_, err := sendMessageShape().Validate("discord.send_message", map[string]any{
		"channel_id": "123",
		"content":    string(long),
	})
	if err == nil {
		t.Fatal("expected error for over-long content")
	}
}

func TestValidateEnum(t *testing.T) {
	shape := Object{Fields: []Field{
		Enum("has", "attachment filter", false, "link", "embed", "file"),
	}}
	if _, err := shape.Validate("discord.search_messages", map[string]any{"has": "link"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := shape.Validate("discord.search_messages", map[string]any{"has": "gif"}); err == nil {
		t.Fatal("expected enum violation")
	}
}

func TestValidateIsPure(t *testing.T) {
	shape := sendMessageShape()
	raw := map[string]any{"channel_id": "123", "content": "hi"}
	validated, err := shape.Validate("discord.send_message", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	validated["content"] = "mutated"
	if raw["content"] != "hi" {
		t.Fatal("validation must not alias the caller's map")
	}
}

func TestJSONSchemaShape(t *testing.T) {
	js := sendMessageShape().JSONSchema()
	if js["type"] != "object" {
		t.Fatalf("unexpected type %v", js["type"])
	}
	if js["additionalProperties"] != false {
		t.Fatal("schema must be closed")
	}
	required, ok := js["required"].([]string)
	if !ok || len(required) != 2 {
		t.Fatalf("unexpected required list: %v", js["required"])
	}
}
