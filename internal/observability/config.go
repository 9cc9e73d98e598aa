package observability

// Config represents the complete observability configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default observability configuration.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    "concord",
			ServiceVersion: "1.0.0",
		},
	}
}

// Observability bundles the logger, metrics and tracing for injection.
type Observability struct {
	Logger  *Logger
	Metrics *MetricsCollector
	Tracing *TracerProvider
}

// New builds the full observability stack from config.
func New(config Config) (*Observability, error) {
	logger := NewLogger(LogConfig{
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
	})

	metrics, err := NewMetricsCollector(config.Metrics)
	if err != nil {
		return nil, err
	}

	tracing, err := NewTracerProvider(config.Tracing)
	if err != nil {
		return nil, err
	}

	return &Observability{
		Logger:  logger,
		Metrics: metrics,
		Tracing: tracing,
	}, nil
}
