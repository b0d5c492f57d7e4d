package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer creates and configures the Echo HTTP server.
func NewHTTPServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || path == "/api/v1/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			deps.Logger.InfoContext(ctx, "HTTP request completed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"error", v.Error)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api := e.Group("/api/v1")
	api.POST("/generations", deps.GenerationHandler.HandleSubmitGeneration)
	api.POST("/scripts", deps.GenerationHandler.HandleSubmitScript)
	api.POST("/projects/:project_id/render", deps.GenerationHandler.HandleStartRender)
	api.POST("/projects/:project_id/cancel", deps.GenerationHandler.HandleCancelProject)
	api.GET("/jobs/:job_id/status", deps.StatusHandler.HandleJobStatus)
	api.GET("/projects/:project_id/progress", deps.StatusHandler.HandleProjectProgress)
	api.GET("/health", deps.StatusHandler.HandleHealth)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

// StartHTTPServer starts the HTTP server in a goroutine.
func StartHTTPServer(e *echo.Echo, port int, log *slog.Logger) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("starting HTTP server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()
}

// ShutdownHTTPServer drains in-flight requests within the given context.
func ShutdownHTTPServer(ctx context.Context, e *echo.Echo, log *slog.Logger) {
	if err := e.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
}
