// Package health aggregates liveness counters for the health endpoint.
package health

import (
	"sync"
	"time"
)

// ewmaAlpha weights recent latencies; roughly the last ~20 requests dominate.
const ewmaAlpha = 0.1

// Status is a point-in-time health snapshot.
type Status struct {
	Status        string            `json:"status"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Requests      uint64            `json:"requests"`
	Errors        uint64            `json:"errors"`
	AvgLatencyMS  float64           `json:"avg_latency_ms"`
	Outcomes      map[string]uint64 `json:"outcomes,omitempty"`
	Upstream      string            `json:"upstream"`
}

// Monitor accumulates request outcomes. All methods are safe for
// concurrent use.
type Monitor struct {
	mu          sync.Mutex
	start       time.Time
	requests    uint64
	errors      uint64
	ewmaLatency float64 // milliseconds, 0 until first sample
	outcomes    map[string]uint64
	upstreamOK  bool
}

// NewMonitor creates a monitor with the clock started now.
func NewMonitor() *Monitor {
	return &Monitor{
		start:    time.Now(),
		outcomes: make(map[string]uint64),
	}
}

// Observe records one finished invocation.
func (m *Monitor) Observe(outcome string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if outcome != "ok" {
		m.errors++
	}
	m.outcomes[outcome]++

	sample := float64(latency.Microseconds()) / 1000.0
	if m.ewmaLatency == 0 {
		m.ewmaLatency = sample
	} else {
		m.ewmaLatency = ewmaAlpha*sample + (1-ewmaAlpha)*m.ewmaLatency
	}
}

// SetUpstream records the result of the latest upstream reachability probe.
func (m *Monitor) SetUpstream(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upstreamOK = ok
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := make(map[string]uint64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	status := "ok"
	upstream := "ok"
	if !m.upstreamOK {
		status = "degraded"
		upstream = "unreachable"
	}
	return Status{
		Status:        status,
		UptimeSeconds: time.Since(m.start).Seconds(),
		Requests:      m.requests,
		Errors:        m.errors,
		AvgLatencyMS:  m.ewmaLatency,
		Outcomes:      outcomes,
		Upstream:      upstream,
	}
}
