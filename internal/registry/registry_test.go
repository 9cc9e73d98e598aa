package registry

import (
	"context"
	"errors"
	"testing"

	gwerrors "concord/internal/errors"
	"concord/internal/schema"
)

func testDescriptor(name, version string) *Descriptor {
	return &Descriptor{
		Name:    name,
		Version: version,
		Schema:  &schema.Object{Fields: []schema.Field{schema.Snowflake("channel_id", "channel", true)}},
		Class:   Read,
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return version, nil
		},
	}
}

func TestResolveLatestByDefault(t *testing.T) {
	r := New()
	r.MustRegister(testDescriptor("discord.read_messages", "1.0.0"))
	r.MustRegister(testDescriptor("discord.read_messages", "1.2.0"))
	r.MustRegister(testDescriptor("discord.read_messages", "1.10.0"))

	d, err := r.Resolve("discord.read_messages", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// 1.10.0 orders after 1.2.0 numerically, not lexically.
	if d.Version != "1.10.0" {
		t.Fatalf("expected latest 1.10.0, got %s", d.Version)
	}
}

func TestResolveExplicitVersion(t *testing.T) {
	r := New()
	r.MustRegister(testDescriptor("discord.read_messages", "1.0.0"))
	r.MustRegister(testDescriptor("discord.read_messages", "2.0.0"))

	d, err := r.Resolve("discord.read_messages", "1.0.0")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if d.Version != "1.0.0" {
		t.Fatalf("expected pinned 1.0.0, got %s", d.Version)
	}
}

func TestResolveUnknownTool(t *testing.T) {
	r := New()
	_, err := r.Resolve("discord.nope", "")
	var unknown *gwerrors.UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if gwerrors.CodeOf(err) != gwerrors.CodeUnknownTool {
		t.Fatalf("unexpected code %d", gwerrors.CodeOf(err))
	}
}

func TestResolveUnknownVersion(t *testing.T) {
	r := New()
	r.MustRegister(testDescriptor("discord.read_messages", "1.0.0"))
	_, err := r.Resolve("discord.read_messages", "9.9.9")
	var unknown *gwerrors.UnknownVersionError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownVersionError, got %v", err)
	}
}

func TestRegisterDuplicateVersion(t *testing.T) {
	r := New()
	r.MustRegister(testDescriptor("discord.read_messages", "1.0.0"))
	if err := r.Register(testDescriptor("discord.read_messages", "1.0.0")); err == nil {
		t.Fatal("duplicate registration must fail")
	}
}

func TestRegisterRejectsIncomplete(t *testing.T) {
	r := New()
	if err := r.Register(&Descriptor{Name: "x"}); err == nil {
		t.Fatal("descriptor without schema must fail")
	}
	if err := r.Register(&Descriptor{
		Name:   "x",
		Schema: &schema.Object{},
	}); err == nil {
		t.Fatal("descriptor without handler must fail")
	}
}

func TestListReturnsLatestSorted(t *testing.T) {
	r := New()
	r.MustRegister(testDescriptor("discord.send_message", "1.0.0"))
	r.MustRegister(testDescriptor("discord.list_channels", "1.0.0"))
	r.MustRegister(testDescriptor("discord.list_channels", "1.1.0"))

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(list))
	}
	if list[0].Name != "discord.list_channels" || list[0].Version != "1.1.0" {
		t.Fatalf("unexpected first entry %s@%s", list[0].Name, list[0].Version)
	}
	if list[1].Name != "discord.send_message" {
		t.Fatalf("unexpected second entry %s", list[1].Name)
	}
}

func TestClassGating(t *testing.T) {
	if !Read.Retryable() || !Read.Cacheable() {
		t.Fatal("read must be retryable and cacheable")
	}
	if Write.Retryable() || Write.Cacheable() {
		t.Fatal("write must be neither retryable nor cacheable")
	}
	if !IdempotentWrite.Retryable() || IdempotentWrite.Cacheable() {
		t.Fatal("idempotent write retries but never caches")
	}
	if Read.String() != "read" || Write.String() != "write" || IdempotentWrite.String() != "idempotent_write" {
		t.Fatal("unexpected class names")
	}
	if d := (Class)(42); d.String() != "unknown" {
		t.Fatalf("unexpected name %s", d.String())
	}
}
