// Package health serves liveness and readiness probes for the HTTP host.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// DefaultReadinessTimeout bounds a readiness probe.
const DefaultReadinessTimeout = 5 * time.Second

// Status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Check is a readiness check.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c checkFunc) Name() string                    { return c.name }
func (c checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckFunc adapts fn to a Check.
func CheckFunc(name string, fn func(ctx context.Context) error) Check {
	return checkFunc{name: name, fn: fn}
}

// Report is the readiness response body.
type Report struct {
	Status    string             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Result is the outcome of one check.
type Result struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Handler runs checks and serves probes.
type Handler struct {
	version string
	timeout time.Duration
	logger  observability.Logger
	started time.Time

	mu     sync.RWMutex
	checks []Check
}

// NewHandler creates a Handler.
func NewHandler(version string, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		version: version,
		timeout: DefaultReadinessTimeout,
		logger:  logger,
		started: time.Now(),
	}
}

// AddCheck adds a readiness check.
func (h *Handler) AddCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Run runs every check concurrently.
func (h *Handler) Run(ctx context.Context) *Report {
	h.mu.RLock()
	checks := append([]Check(nil), h.checks...)
	h.mu.RUnlock()

	report := &Report{
		Status:    StatusOK,
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    make(map[string]*Result, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)
			result := &Result{Status: StatusOK, Duration: time.Since(start).String()}
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()
				h.logger.Warn("health check failed",
					observability.String("check", c.Name()),
					observability.Error(err),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[c.Name()] = result
			if err != nil {
				report.Status = StatusError
			}
		}(check)
	}
	wg.Wait()

	return report
}

// Liveness reports that the process serves requests.
func (h *Handler) Liveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": StatusOK})
	}
}

// Readiness runs the checks and answers 503 when any fails.
func (h *Handler) Readiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()

		report := h.Run(ctx)
		code := http.StatusOK
		if report.Status != StatusOK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}

// Register serves liveness at path and readiness at path+"/ready".
func (h *Handler) Register(engine *gin.Engine, path string) {
	engine.GET(path, h.Liveness())
	engine.GET(path+"/ready", h.Readiness())
}

// ErrNoRoutes reports a router without routes.
var ErrNoRoutes = errors.New("no routes registered")
