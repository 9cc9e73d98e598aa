package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"concord/internal/audit"
	"concord/internal/cache"
	"concord/internal/config"
	"concord/internal/discord"
	"concord/internal/dispatch"
	gwerrors "concord/internal/errors"
	"concord/internal/logging"
	"concord/internal/observability"
	"concord/internal/ratelimit"
	"concord/internal/server"
	"concord/internal/transport"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(config.WithConfigPath(resolveConfigPath()))
	if err != nil {
		return err
	}
	if cfg.DiscordToken == "" {
		return fmt.Errorf("discord token not configured (set CONCORD_DISCORD_TOKEN or discord_token in the config file)")
	}

	obs, err := observability.New(observability.Config{
		Logging: observability.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
		},
		Metrics: observability.MetricsConfig{Enabled: cfg.MetricsEnabled},
		Tracing: observability.TracingConfig{
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.TracingEndpoint,
			ZipkinEndpoint: cfg.TracingEndpoint,
			SampleRate:     cfg.TracingSampleRate,
			ServiceName:    "concord",
			ServiceVersion: version,
		},
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	observability.SetDefaultLogger(obs.Logger)
	logger := logging.NewComponentLogger("gateway")
	metrics := obs.Metrics
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown: %v", err)
		}
	}()

	tracker := ratelimit.NewTracker(logging.NewComponentLogger("ratelimit"))
	upstream := transport.New(transport.Config{
		BaseURL:          cfg.DiscordBaseURL,
		Token:            cfg.DiscordToken,
		UserAgent:        cfg.UserAgent,
		MaxAttempts:      cfg.RetryMaxAttempts,
		BaseDelay:        cfg.RetryBaseDelay(),
		MaxDelay:         cfg.RetryMaxDelay(),
		JitterFactor:     cfg.RetryJitter,
		MaxAdmitWait:     cfg.MaxAdmitWait(),
		RequestTimeout:   cfg.UpstreamTimeout(),
		MaxResponseBytes: cfg.MaxResponseBytes,
		Breaker: gwerrors.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Timeout:          cfg.BreakerCooldown(),
		},
	}, tracker, logging.NewComponentLogger("transport"), transport.WithMetrics(metrics))

	client := discord.NewClient(upstream)
	catalog := discord.Catalog(client)

	responseCache := cache.New(
		logging.NewComponentLogger("cache"),
		cache.WithMaxEntries(cfg.CacheMaxEntries),
		cache.WithMetrics(metrics),
	)

	auditFile, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", cfg.AuditLogPath, err)
	}
	defer auditFile.Close()

	auditLog := audit.NewLogger(
		audit.NewJSONLinesSink(auditFile),
		logging.NewComponentLogger("audit"),
		audit.WithBuffer(cfg.AuditBufferSize),
		audit.WithMetrics(metrics),
	)
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Warn("Audit log close: %v", err)
		}
	}()

	dispatcher := dispatch.New(
		catalog,
		responseCache,
		auditLog,
		logging.NewComponentLogger("dispatch"),
		dispatch.WithMetrics(metrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responseCache.StartSweeper(ctx, cfg.CacheSweepInterval())

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	user, err := client.Probe(probeCtx)
	cancel()
	if err != nil {
		logger.Warn("Upstream probe failed, serving degraded: %v", err)
		dispatcher.Health().SetUpstream(false)
	} else {
		dispatcher.Health().SetUpstream(true)
		logger.Info("Authenticated against Discord as %s", user.Username)
	}

	if isTTY() {
		fmt.Printf("%s %s\n", bold("Concord"), gray("v"+version))
		fmt.Printf("  %s %d tools registered\n", green("•"), catalog.Len())
		if user != nil {
			fmt.Printf("  %s connected as %s\n", green("•"), cyan(user.Username))
		} else {
			fmt.Printf("  %s upstream unreachable, serving degraded\n", red("•"))
		}
		fmt.Printf("  %s listening on http://%s:%d\n\n", green("•"), cfg.Host, cfg.Port)
	}

	srv := server.New(dispatcher, &server.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		EnableCORS:      cfg.EnableCORS,
		Debug:           cfg.Debug,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    cfg.RequestTimeout() + 5*time.Second,
		RequestTimeout:  cfg.RequestTimeout(),
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
	}, logging.NewComponentLogger("server"))

	return srv.Start(ctx)
}
