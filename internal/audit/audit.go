// Package audit records one line per tool invocation, succeeded or failed.
// Appending never blocks dispatch: when the buffer is full the record is
// dropped and counted instead.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"concord/internal/logging"
	"concord/internal/observability"
)

const defaultBuffer = 1024

// Record is one audit entry.
type Record struct {
	Time      time.Time      `json:"time"`
	RequestID string         `json:"request_id"`
	Tool      string         `json:"tool"`
	Version   string         `json:"version,omitempty"`
	Outcome   string         `json:"outcome"`
	CacheHit  bool           `json:"cache_hit,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Params    map[string]any `json:"params,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Sink persists records one at a time.
type Sink interface {
	Write(record Record) error
}

// JSONLinesSink writes records as JSON lines.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

func (s *JSONLinesSink) Write(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(record Record) error

func (f SinkFunc) Write(record Record) error { return f(record) }

// Logger buffers records and writes them on a background goroutine.
type Logger struct {
	records chan Record
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool

	sink    Sink
	logger  logging.Logger
	metrics *observability.MetricsCollector
	done    chan struct{}
}

// Option configures a Logger.
type Option func(*Logger)

// WithBuffer sets the record buffer size.
func WithBuffer(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.records = make(chan Record, n)
		}
	}
}

// WithMetrics injects the metrics collector.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(l *Logger) { l.metrics = metrics }
}

// NewLogger creates a logger draining into sink. Call Close to flush.
func NewLogger(sink Sink, logger logging.Logger, opts ...Option) *Logger {
	l := &Logger{
		records: make(chan Record, defaultBuffer),
		sink:    sink,
		logger:  logging.OrNop(logger),
		metrics: &observability.MetricsCollector{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.drain()
	return l
}

func (l *Logger) drain() {
	defer close(l.done)
	for record := range l.records {
		if err := l.sink.Write(record); err != nil {
			l.logger.Warn("Failed to write audit record for %s: %v", record.Tool, err)
		}
	}
}

// Append enqueues a record without blocking. A full buffer drops the
// record and bumps the drop counter.
func (l *Logger) Append(record Record) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.dropped.Add(1)
		return
	}
	select {
	case l.records <- record:
		l.mu.Unlock()
	default:
		l.mu.Unlock()
		l.dropped.Add(1)
		l.metrics.RecordAuditDrop(context.Background())
	}
}

// Dropped reports how many records were discarded since start.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close stops accepting records, flushes the buffer and waits for the
// writer to finish.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.records)
	l.mu.Unlock()
	<-l.done
	if d := l.dropped.Load(); d > 0 {
		return fmt.Errorf("audit logger dropped %d records", d)
	}
	return nil
}

// redactedKeys marks parameter names whose values must never reach the log.
var redactedKeys = []string{"token", "secret", "password", "authorization", "api_key", "apikey"}

// Redact returns a copy of params with secret-bearing values masked.
// Nested maps are walked; everything else passes through.
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if isSecretKey(key) {
			out[key] = "[REDACTED]"
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = Redact(nested)
			continue
		}
		out[key] = value
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range redactedKeys {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
