package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/health"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// ginModeOnce sets the gin mode once to avoid racing SetMode calls.
var ginModeOnce sync.Once

// RouterSource provides the router serving each request.
type RouterSource interface {
	Router() *router.Router
}

// Server hosts a router.
type Server struct {
	cfg        config.ServerConfig
	metricsCfg config.MetricsConfig
	source     RouterSource
	engine     *gin.Engine
	httpServer *http.Server
	logger     observability.Logger
	metrics    *observability.Metrics
	health     *health.Handler

	mu      sync.Mutex
	running bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request metrics in m and serves them when metrics
// are enabled.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth serves the probes of h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// New creates a server for cfg serving requests with the router of source.
func New(cfg *config.Config, source RouterSource, opts ...Option) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		cfg:        cfg.Server,
		metricsCfg: cfg.Metrics,
		source:     source,
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.NewHandler("", s.logger)
	}

	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	probes := []string{s.cfg.HealthPath, s.cfg.HealthPath + "/ready"}
	if s.metricsCfg.Enabled {
		probes = append(probes, s.metricsCfg.Path)
	}

	engine.Use(RequestID(), Logging(s.logger, probes...), Recovery(s.logger))
	if s.metrics != nil {
		engine.Use(Metrics(s.metrics, probes...))
	}
	if rl := rateLimitFromConfig(s.cfg.RateLimit); rl != nil {
		engine.Use(RateLimit(rl, s.logger, probes...))
	}

	s.health.Register(engine, s.cfg.HealthPath)
	if s.metricsCfg.Enabled && s.metrics != nil {
		engine.GET(s.metricsCfg.Path, gin.WrapH(s.metrics.Handler()))
	}

	engine.NoRoute(s.serve)
	return engine
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// serve passes the request to the router.
func (s *Server) serve(c *gin.Context) {
	req := BuildRequest(c.Request, s.cfg.EscapedFragment)
	ctx := context.WithValue(c.Request.Context(), ginContextKey{}, c)

	outcome, err := s.source.Router().Serve(ctx, req)
	if err != nil {
		c.Set(outcomeKey, "error")
		_ = c.Error(err)
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "The request could not be served",
			})
		}
		return
	}

	c.Set(outcomeKey, outcome.Status.String())
	respond(c, outcome)
}

// Start listens on the configured address and blocks until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout.Duration(),
		WriteTimeout: s.cfg.WriteTimeout.Duration(),
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.cfg.Address),
		observability.Duration("readTimeout", s.cfg.ReadTimeout.Duration()),
		observability.Duration("writeTimeout", s.cfg.WriteTimeout.Duration()),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
