// Package server exposes the dispatcher and the script store over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wesleyorama2/k6lunge/internal/profile"
	"github.com/wesleyorama2/k6lunge/internal/runner"
	"github.com/wesleyorama2/k6lunge/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Dispatcher runs scripts.
type Dispatcher interface {
	Run(ctx context.Context, src runner.ScriptSource, p profile.LoadProfile) (*runner.RunResult, error)
	Mode() runner.Mode
}

// Scripts is the script store as seen by the HTTP API.
type Scripts interface {
	List(f store.Filter) ([]store.Script, error)
	Lookup(environment, application, id string) (*store.Script, error)
	Put(name, content, environment, application string) (*store.Script, error)
	Delete(environment, application, id string) error
	Environments() []string
	Applications() []string
}

// Handler handles HTTP requests.
type Handler struct {
	dispatcher     Dispatcher
	scripts        Scripts
	metrics        http.Handler
	logger         *zap.SugaredLogger
	maxUploadBytes int64
}

// NewHandler creates a new handler. metrics may be nil, in which case
// /metrics is not served.
func NewHandler(d Dispatcher, scripts Scripts, metrics http.Handler, logger *zap.SugaredLogger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 1 << 20
	}
	return &Handler{
		dispatcher:     d,
		scripts:        scripts,
		metrics:        metrics,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Banner)
	e.GET("/healthz", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}

	api := e.Group("/api")
	api.GET("/config", h.GetConfig)
	api.GET("/scripts", h.ListScripts)
	api.GET("/scripts/:environment/:application/:scriptId", h.GetScript)
	api.DELETE("/scripts/:environment/:application/:scriptId", h.DeleteScript)
	api.POST("/scripts", h.SaveScript)
	api.POST("/run-test", h.RunTest)
}

// New builds the echo server with recovery, CORS and request logging.
func New(h *Handler, logger *zap.SugaredLogger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []interface{}{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.Warnw("Request failed", append(fields, "error", v.Error)...)
				return nil
			}
			logger.Infow("Request", fields...)
			return nil
		},
	}))

	h.RegisterRoutes(e)
	return e
}

// Serve starts e on addr and shuts it down gracefully when ctx is done.
func Serve(ctx context.Context, e *echo.Echo, addr string, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Infow("HTTP server listening", "addr", addr)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down HTTP server gracefully")
	}
	return nil
}

// Banner identifies the service.
func (h *Handler) Banner(c echo.Context) error {
	return c.String(http.StatusOK, "k6 load test runner ("+string(h.dispatcher.Mode())+" mode)")
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":        "healthy",
		"executionMode": string(h.dispatcher.Mode()),
	})
}
