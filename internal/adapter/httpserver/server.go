package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ew73/slack-karma/internal/adapter/metrics"
	"github.com/ew73/slack-karma/internal/domain"
	"github.com/ew73/slack-karma/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type karmaService interface {
	Handle(ctx context.Context, event domain.Event) (domain.Reply, domain.Outcome, error)
	Standings(ctx context.Context, limit int) ([]domain.Standing, error)
	Lookup(ctx context.Context, subject string) (int64, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	karma karmaService

	httpMetrics    *metrics.HTTPMetrics
	voteMetrics    *metrics.VoteMetrics
	metricsHandler http.Handler

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, karma karmaService, reg *prometheus.Registry, healthChecks []HealthCheck, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(cfg.TrustProxyHeaders)

	srv := &Server{
		echo:           e,
		config:         cfg,
		karma:          karma,
		httpMetrics:    metrics.NewHTTPMetrics(reg, unmeteredPrefixes...),
		voteMetrics:    metrics.NewVoteMetrics(reg),
		metricsHandler: metrics.Handler(reg),
		healthChecks:   healthChecks,
		clock:          clock,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router so the server can be driven in-process.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
