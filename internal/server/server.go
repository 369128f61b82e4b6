// Package server exposes the reflection engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/auth"
	"github.com/reflectd-dev/reflectd/internal/engine"
	"github.com/reflectd-dev/reflectd/internal/store"
	"github.com/reflectd-dev/reflectd/internal/summary"
	"github.com/reflectd-dev/reflectd/pkg/observability"
)

// Server wires the engine, store, and auth into an echo instance.
type Server struct {
	echo       *echo.Echo
	engine     *engine.Engine
	summarizer *summary.Summarizer
	store      store.Store
	auth       *auth.Authenticator
	logger     *zap.Logger
	addr       string
}

// New assembles the HTTP server. The summarizer is optional; without it
// the on-demand summary endpoint returns 503.
func New(eng *engine.Engine, st store.Store, a *auth.Authenticator, sum *summary.Summarizer, logger *zap.Logger, addr string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	observability.InitMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:       e,
		engine:     eng,
		summarizer: sum,
		store:      st,
		auth:       a,
		logger:     logger,
		addr:       addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	health := observability.NewHealthChecker("")
	if pinger, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		health.RegisterCheck(&observability.HealthCheck{
			Name:      "store",
			Critical:  true,
			Timeout:   2 * time.Second,
			CheckFunc: pinger.Ping,
		})
	}

	s.echo.GET("/healthz", echo.WrapHandler(health.Handler()))
	s.echo.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))

	s.echo.POST("/v1/auth/token", s.handleToken)

	v1 := s.echo.Group("/v1", s.authMiddleware())
	v1.POST("/reflections/:date/start", s.handleStart)
	v1.POST("/reflections/:date/messages", s.handleSubmit)
	v1.GET("/reflections/:date", s.handleGet)
	v1.GET("/progress", s.handleProgress)
	v1.GET("/summaries", s.handleSummaries)
	v1.POST("/summaries/:week", s.handleRunSummary)
	v1.GET("/profile", s.handleGetProfile)
	v1.PUT("/profile", s.handlePutProfile)
}

// requestLogger logs each request and feeds the HTTP metrics.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			observability.RecordHTTPRequest(
				c.Request().Method, c.Path(), http.StatusText(status), duration)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			return err
		}
	}
}

// Start begins serving. It blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
