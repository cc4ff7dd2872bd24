// Package server provides the HTTP API surface.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
)

// Registrar is implemented by every resource package that exposes routes.
// Authenticated routes go on api, unauthenticated ones on public.
type Registrar interface {
	Register(api *echo.Group, public *echo.Group)
}

// Server wraps the echo instance and its lifecycle.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger logger.Logger
}

// New builds the server with middleware, the error handler, and all routes
// registered.
func New(cfg *config.Config, sessions *auth.Store, log logger.Logger, registrars ...Registrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(requestMetrics())

	e.HTTPErrorHandler = errorHandler(log)

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", SessionAuth(sessions, cfg.Auth.SessionCookie))
	public := e.Group("")
	for _, r := range registrars {
		r.Register(api, public)
	}

	return s
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", map[string]interface{}{
		"addr": s.cfg.Server.Addr(),
	})
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Millisecond,
	}
	return s.echo.StartServer(srv)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.cfg.App.Version})
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Info("http request", map[string]interface{}{
				"method":     c.Request().Method,
				"uri":        c.Request().RequestURI,
				"status":     c.Response().Status,
				"duration":   time.Since(start).String(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
			return err
		}
	}
}

func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(
				c.Request().Method, route, strconv.Itoa(c.Response().Status),
			).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				c.Request().Method, route,
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// errorHandler converts every error reaching the boundary into the standard
// JSON error envelope. Echo's own HTTP errors (404, 405) pass through with
// their status preserved.
func errorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *apperrors.APIError
		if httpErr, ok := err.(*echo.HTTPError); ok {
			msg := http.StatusText(httpErr.Code)
			if m, ok := httpErr.Message.(string); ok {
				msg = m
			}
			apiErr = &apperrors.APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: msg,
			}
		} else {
			apiErr = apperrors.ToAPIError(err)
		}

		if apiErr.Status >= http.StatusInternalServerError {
			log.Error("request failed", map[string]interface{}{
				"method":     c.Request().Method,
				"uri":        c.Request().RequestURI,
				"code":       apiErr.Code,
				"error":      err.Error(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}
