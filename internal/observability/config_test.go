package observability

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Logging.Level != "info" {
		t.Fatalf("expected default level info, got %q", config.Logging.Level)
	}
	if !config.Metrics.Enabled {
		t.Fatal("expected metrics enabled by default")
	}
	if config.Tracing.Enabled {
		t.Fatal("expected tracing disabled by default")
	}
}

func TestNewBuildsFullStack(t *testing.T) {
	obs, err := New(Config{
		Logging: LoggingConfig{Level: "debug", Format: "text"},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{Enabled: false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Logger == nil || obs.Metrics == nil || obs.Tracing == nil {
		t.Fatalf("incomplete stack: %+v", obs)
	}
}

func TestNewDisabledMetricsIsNoop(t *testing.T) {
	obs, err := New(Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: false},
		Tracing: TracingConfig{Enabled: false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Recording on a disabled collector must not panic.
	obs.Metrics.RecordCacheHit(t.Context(), "discord.get_channel")
	obs.Metrics.RecordAuditDrop(t.Context())
}
