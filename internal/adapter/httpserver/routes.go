package httpserver

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const webhookBodyLimit = "64K"

// Scrapes and probes are kept out of the HTTP metrics.
var unmeteredPrefixes = []string{"/metrics", "/health/"}

func (s *Server) registerRoutes() {
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(s.httpMetrics.Middleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))

	s.registerHealthRoutes()
	s.registerWebhookRoutes()
	s.registerKarmaRoutes()

	s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
}

func (s *Server) registerWebhookRoutes() {
	s.echo.POST("/webhooks/slack", s.handleSlackWebhook,
		middleware.BodyLimit(webhookBodyLimit),
		newWebhookRateLimiter(s.config.WebhookRateLimit, s.config.WebhookRateBurst, s.config.WebhookSecret),
	)
}

func (s *Server) registerKarmaRoutes() {
	api := s.echo.Group("/api/karma")
	api.GET("", s.handleListKarma)
	api.GET("/:subject", s.handleGetKarma)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
