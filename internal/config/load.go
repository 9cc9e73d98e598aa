package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvLookup abstracts os.LookupEnv so tests can inject environments.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	configPath string
	overrides  func(*RuntimeConfig)
}

// Option adjusts how Load resolves configuration.
type Option func(*loadOptions)

// WithEnv replaces the environment lookup.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithConfigPath points Load at a specific YAML file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithFileReader replaces the file reader.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = reader }
}

// WithOverrides applies caller overrides after file and environment.
func WithOverrides(overrides func(*RuntimeConfig)) Option {
	return func(o *loadOptions) { o.overrides = overrides }
}

// Load resolves the runtime configuration. Precedence, lowest to highest:
// defaults, config file, CONCORD_* environment, caller overrides.
func Load(opts ...Option) (RuntimeConfig, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := RuntimeConfig{
		DiscordBaseURL:          DefaultDiscordBaseURL,
		UserAgent:               DefaultUserAgent,
		Host:                    DefaultHost,
		Port:                    DefaultPort,
		EnableCORS:              true,
		RequestTimeoutSeconds:   int(DefaultRequestTimeout.Seconds()),
		RetryMaxAttempts:        DefaultRetryMaxAttempts,
		RetryBaseDelayMS:        int(DefaultRetryBaseDelay.Milliseconds()),
		RetryMaxDelayMS:         int(DefaultRetryMaxDelay.Milliseconds()),
		RetryJitter:             DefaultRetryJitter,
		MaxAdmitWaitSeconds:     int(DefaultMaxAdmitWait.Seconds()),
		UpstreamTimeoutSeconds:  int(DefaultUpstreamTimeout.Seconds()),
		MaxResponseBytes:        DefaultMaxResponseBytes,
		BreakerFailureThreshold: DefaultBreakerThreshold,
		BreakerCooldownSeconds:  int(DefaultBreakerCooldown.Seconds()),
		CacheMaxEntries:         DefaultCacheMaxEntries,
		CacheSweepSeconds:       int(DefaultCacheSweepInterval.Seconds()),
		AuditBufferSize:         DefaultAuditBufferSize,
		AuditLogPath:            DefaultAuditLogPath,
		LogLevel:                DefaultLogLevel,
		LogFormat:               DefaultLogFormat,
		MetricsEnabled:          true,
		TracingExporter:         "otlp",
		TracingSampleRate:       DefaultTracingSampleRate,
	}

	if err := applyFile(&cfg, options); err != nil {
		return RuntimeConfig{}, err
	}
	if err := applyEnv(&cfg, options.envLookup); err != nil {
		return RuntimeConfig{}, err
	}
	if options.overrides != nil {
		options.overrides(&cfg)
	}

	normalize(&cfg)
	return cfg, nil
}

func applyFile(cfg *RuntimeConfig, options loadOptions) error {
	if options.configPath == "" {
		return nil
	}
	data, err := options.readFile(options.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", options.configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", options.configPath, err)
	}
	return nil
}

func applyEnv(cfg *RuntimeConfig, lookup EnvLookup) error {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}

	envString(lookup, "CONCORD_DISCORD_TOKEN", &cfg.DiscordToken)
	// The bare name is what Discord's own docs tell people to export.
	if cfg.DiscordToken == "" {
		envString(lookup, "DISCORD_TOKEN", &cfg.DiscordToken)
	}
	envString(lookup, "CONCORD_DISCORD_BASE_URL", &cfg.DiscordBaseURL)
	envString(lookup, "CONCORD_USER_AGENT", &cfg.UserAgent)
	envString(lookup, "CONCORD_HOST", &cfg.Host)
	envString(lookup, "CONCORD_AUDIT_LOG_PATH", &cfg.AuditLogPath)
	envString(lookup, "CONCORD_LOG_LEVEL", &cfg.LogLevel)
	envString(lookup, "CONCORD_LOG_FORMAT", &cfg.LogFormat)
	envString(lookup, "CONCORD_TRACING_EXPORTER", &cfg.TracingExporter)
	envString(lookup, "CONCORD_TRACING_ENDPOINT", &cfg.TracingEndpoint)

	intFields := map[string]*int{
		"CONCORD_PORT":                      &cfg.Port,
		"CONCORD_REQUEST_TIMEOUT_SECONDS":   &cfg.RequestTimeoutSeconds,
		"CONCORD_RETRY_MAX_ATTEMPTS":        &cfg.RetryMaxAttempts,
		"CONCORD_RETRY_BASE_DELAY_MS":       &cfg.RetryBaseDelayMS,
		"CONCORD_RETRY_MAX_DELAY_MS":        &cfg.RetryMaxDelayMS,
		"CONCORD_MAX_ADMIT_WAIT_SECONDS":    &cfg.MaxAdmitWaitSeconds,
		"CONCORD_UPSTREAM_TIMEOUT_SECONDS":  &cfg.UpstreamTimeoutSeconds,
		"CONCORD_BREAKER_FAILURE_THRESHOLD": &cfg.BreakerFailureThreshold,
		"CONCORD_BREAKER_COOLDOWN_SECONDS":  &cfg.BreakerCooldownSeconds,
		"CONCORD_CACHE_MAX_ENTRIES":         &cfg.CacheMaxEntries,
		"CONCORD_CACHE_SWEEP_SECONDS":       &cfg.CacheSweepSeconds,
		"CONCORD_AUDIT_BUFFER_SIZE":         &cfg.AuditBufferSize,
	}
	for key, target := range intFields {
		if err := envInt(lookup, key, target); err != nil {
			return err
		}
	}

	if err := envInt64(lookup, "CONCORD_MAX_RESPONSE_BYTES", &cfg.MaxResponseBytes); err != nil {
		return err
	}
	if err := envFloat(lookup, "CONCORD_RETRY_JITTER", &cfg.RetryJitter); err != nil {
		return err
	}
	if err := envFloat(lookup, "CONCORD_TRACING_SAMPLE_RATE", &cfg.TracingSampleRate); err != nil {
		return err
	}

	boolFields := map[string]*bool{
		"CONCORD_ENABLE_CORS":     &cfg.EnableCORS,
		"CONCORD_DEBUG":           &cfg.Debug,
		"CONCORD_METRICS_ENABLED": &cfg.MetricsEnabled,
		"CONCORD_TRACING_ENABLED": &cfg.TracingEnabled,
	}
	for key, target := range boolFields {
		if err := envBool(lookup, key, target); err != nil {
			return err
		}
	}
	return nil
}

func envString(lookup EnvLookup, key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func envInt(lookup EnvLookup, key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envInt64(lookup EnvLookup, key string, target *int64) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envFloat(lookup EnvLookup, key string, target *float64) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envBool(lookup EnvLookup, key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func normalize(cfg *RuntimeConfig) {
	cfg.DiscordToken = strings.TrimSpace(cfg.DiscordToken)
	cfg.DiscordBaseURL = strings.TrimRight(strings.TrimSpace(cfg.DiscordBaseURL), "/")
	cfg.UserAgent = strings.TrimSpace(cfg.UserAgent)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.TracingExporter = strings.ToLower(strings.TrimSpace(cfg.TracingExporter))

	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.RetryBaseDelayMS <= 0 {
		cfg.RetryBaseDelayMS = int(DefaultRetryBaseDelay.Milliseconds())
	}
	if cfg.RetryMaxDelayMS < cfg.RetryBaseDelayMS {
		cfg.RetryMaxDelayMS = int(DefaultRetryMaxDelay.Milliseconds())
	}
	if cfg.RetryJitter < 0 || cfg.RetryJitter > 1 {
		cfg.RetryJitter = DefaultRetryJitter
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if cfg.AuditBufferSize <= 0 {
		cfg.AuditBufferSize = DefaultAuditBufferSize
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = int(DefaultRequestTimeout.Seconds())
	}
}
