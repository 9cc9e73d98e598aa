package health

import (
	"testing"
	"time"
)

func TestObserveCounters(t *testing.T) {
	m := NewMonitor()
	m.SetUpstream(true)
	m.Observe("ok", 10*time.Millisecond)
	m.Observe("ok", 20*time.Millisecond)
	m.Observe("validation_error", 1*time.Millisecond)

	s := m.Snapshot()
	if s.Requests != 3 {
		t.Fatalf("expected 3 requests, got %d", s.Requests)
	}
	if s.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", s.Errors)
	}
	if s.Outcomes["ok"] != 2 || s.Outcomes["validation_error"] != 1 {
		t.Fatalf("unexpected outcomes %v", s.Outcomes)
	}
	if s.Status != "ok" || s.Upstream != "ok" {
		t.Fatalf("unexpected status %s/%s", s.Status, s.Upstream)
	}
	if s.AvgLatencyMS <= 0 {
		t.Fatalf("expected positive latency, got %f", s.AvgLatencyMS)
	}
}

func TestEWMAFollowsSamples(t *testing.T) {
	m := NewMonitor()
	m.Observe("ok", 10*time.Millisecond)
	first := m.Snapshot().AvgLatencyMS
	if first != 10 {
		t.Fatalf("first sample seeds the average, got %f", first)
	}
	m.Observe("ok", 110*time.Millisecond)
	second := m.Snapshot().AvgLatencyMS
	if second <= first || second >= 110 {
		t.Fatalf("ewma must move toward the new sample, got %f", second)
	}
}

func TestDegradedUpstream(t *testing.T) {
	m := NewMonitor()
	s := m.Snapshot()
	if s.Status != "degraded" || s.Upstream != "unreachable" {
		t.Fatalf("unprobed upstream must report degraded, got %s/%s", s.Status, s.Upstream)
	}
	m.SetUpstream(true)
	if m.Snapshot().Status != "ok" {
		t.Fatal("probed upstream must report ok")
	}
}

func TestSnapshotCopiesOutcomes(t *testing.T) {
	m := NewMonitor()
	m.Observe("ok", time.Millisecond)
	s := m.Snapshot()
	s.Outcomes["ok"] = 99
	if m.Snapshot().Outcomes["ok"] != 1 {
		t.Fatal("snapshot must not alias internal state")
	}
}
