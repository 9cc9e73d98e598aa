// Package server exposes the gateway over HTTP: the JSON-RPC endpoint,
// the health snapshot and the Prometheus scrape endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concord/internal/dispatch"
	"concord/internal/jsonrpc"
	"concord/internal/logging"
	"concord/internal/observability"
)

// Config holds the HTTP server settings.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	EnableCORS      bool          `yaml:"enable_cors"`
	Debug           bool          `yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		EnableCORS:      true,
		Debug:           false,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		RequestTimeout:  55 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
	}
}

// Server is the gateway's HTTP front end.
type Server struct {
	dispatcher *dispatch.Dispatcher
	engine     *gin.Engine
	httpServer *http.Server
	config     *Config
	logger     logging.Logger
}

// New builds the HTTP server around a dispatcher.
func New(dispatcher *dispatch.Dispatcher, config *Config, logger logging.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if config.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		dispatcher: dispatcher,
		engine:     engine,
		config:     config,
		logger:     logging.OrNop(logger),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.POST("/mcp", s.requestContext(), s.handleRPC)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// requestContext tags each request with an ID and bounds its lifetime.
// Callers may supply their own X-Request-ID for correlation.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		if s.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
			defer cancel()
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// handleRPC decodes one JSON-RPC envelope and hands it to the dispatcher.
// Transport-level failures still produce a JSON-RPC error body; the HTTP
// status stays 200 so callers only ever parse one envelope shape.
func (s *Server) handleRPC(c *gin.Context) {
	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultConfig().MaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, jsonrpc.InternalError, "Failed to read request body", nil))
		return
	}

	req, err := jsonrpc.UnmarshalRequest(body)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, rpcErr.Code, rpcErr.Message, rpcErr.Data))
			return
		}
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError, err.Error(), nil))
		return
	}

	resp := s.dispatcher.Handle(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.dispatcher.Health().Snapshot()
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until ctx is cancelled, then drains in-flight requests
// within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("Gateway listening on http://%s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
