// Package config loads the gateway's runtime configuration from a YAML
// file, CONCORD_* environment variables and caller overrides, in that
// precedence order.
package config

import "time"

// Defaults applied before any file or environment value.
const (
	DefaultHost               = "localhost"
	DefaultPort               = 8080
	DefaultDiscordBaseURL     = "https://discord.com/api/v10"
	DefaultUserAgent          = "concord-gateway/1.0"
	DefaultRetryMaxAttempts   = 3
	DefaultRetryBaseDelay     = time.Second
	DefaultRetryMaxDelay      = 30 * time.Second
	DefaultRetryJitter        = 0.25
	DefaultMaxAdmitWait       = 10 * time.Second
	DefaultUpstreamTimeout    = 30 * time.Second
	DefaultRequestTimeout     = 55 * time.Second
	DefaultMaxResponseBytes   = 8 << 20
	DefaultBreakerThreshold   = 5
	DefaultBreakerCooldown    = 30 * time.Second
	DefaultCacheMaxEntries    = 2048
	DefaultCacheSweepInterval = time.Minute
	DefaultAuditBufferSize    = 1024
	DefaultAuditLogPath       = "concord-audit.jsonl"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultTracingSampleRate  = 0.1
)

// RuntimeConfig is the fully resolved gateway configuration.
type RuntimeConfig struct {
	// Upstream Discord API.
	DiscordToken   string `yaml:"discord_token"`
	DiscordBaseURL string `yaml:"discord_base_url"`
	UserAgent      string `yaml:"user_agent"`

	// HTTP front end.
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	EnableCORS            bool   `yaml:"enable_cors"`
	Debug                 bool   `yaml:"debug"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`

	// Upstream retry and admission control.
	RetryMaxAttempts       int     `yaml:"retry_max_attempts"`
	RetryBaseDelayMS       int     `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMS        int     `yaml:"retry_max_delay_ms"`
	RetryJitter            float64 `yaml:"retry_jitter"`
	MaxAdmitWaitSeconds    int     `yaml:"max_admit_wait_seconds"`
	UpstreamTimeoutSeconds int     `yaml:"upstream_timeout_seconds"`
	MaxResponseBytes       int64   `yaml:"max_response_bytes"`

	// Circuit breaker.
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int `yaml:"breaker_cooldown_seconds"`

	// Response cache.
	CacheMaxEntries   int `yaml:"cache_max_entries"`
	CacheSweepSeconds int `yaml:"cache_sweep_seconds"`

	// Audit log.
	AuditBufferSize int    `yaml:"audit_buffer_size"`
	AuditLogPath    string `yaml:"audit_log_path"`

	// Observability.
	LogLevel          string  `yaml:"log_level"`
	LogFormat         string  `yaml:"log_format"`
	MetricsEnabled    bool    `yaml:"metrics_enabled"`
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	TracingExporter   string  `yaml:"tracing_exporter"`
	TracingEndpoint   string  `yaml:"tracing_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// RequestTimeout returns the per-request deadline as a duration.
func (c RuntimeConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay as a duration.
func (c RuntimeConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff ceiling as a duration.
func (c RuntimeConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

// MaxAdmitWait returns the rate-limit admission cap as a duration.
func (c RuntimeConfig) MaxAdmitWait() time.Duration {
	return time.Duration(c.MaxAdmitWaitSeconds) * time.Second
}

// UpstreamTimeout returns the single-attempt upstream deadline.
func (c RuntimeConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// BreakerCooldown returns the open-state cooldown as a duration.
func (c RuntimeConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

// CacheSweepInterval returns the expiry sweep period as a duration.
func (c RuntimeConfig) CacheSweepInterval() time.Duration {
	return time.Duration(c.CacheSweepSeconds) * time.Second
}
