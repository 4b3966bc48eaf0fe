package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/ew73/slack-karma/internal/adapter/metrics"
	"github.com/ew73/slack-karma/internal/domain"
	"github.com/ew73/slack-karma/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Mock implementations ---

type mockKarmaService struct {
	handleFn    func(ctx context.Context, event domain.Event) (domain.Reply, domain.Outcome, error)
	standingsFn func(ctx context.Context, limit int) ([]domain.Standing, error)
	lookupFn    func(ctx context.Context, subject string) (int64, error)
}

func (m *mockKarmaService) Handle(ctx context.Context, event domain.Event) (domain.Reply, domain.Outcome, error) {
	if m.handleFn != nil {
		return m.handleFn(ctx, event)
	}
	return domain.Reply{}, domain.OutcomeNoMatch, nil
}

func (m *mockKarmaService) Standings(ctx context.Context, limit int) ([]domain.Standing, error) {
	if m.standingsFn != nil {
		return m.standingsFn(ctx, limit)
	}
	return []domain.Standing{}, nil
}

func (m *mockKarmaService) Lookup(ctx context.Context, subject string) (int64, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, subject)
	}
	return 0, nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		Port:              "0",
		WebhookSecret:     "s3cret",
		BotName:           "karmabot",
		WebhookRateLimit:  100,
		WebhookRateBurst:  100,
		ProcessingTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, karma karmaService, opts ...func(*Server)) *Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	clock := clockwork.NewFakeClock()

	e := echo.New()
	e.IPExtractor = ipExtractor(false)

	srv := &Server{
		echo:           e,
		config:         testConfig(),
		karma:          karma,
		httpMetrics:    metrics.NewHTTPMetrics(reg, unmeteredPrefixes...),
		voteMetrics:    metrics.NewVoteMetrics(reg),
		metricsHandler: metrics.Handler(reg),
		clock:          clock,
		startTime:      clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withConfig(mutate func(*config.Config)) func(*Server) {
	return func(s *Server) {
		mutate(s.config)
	}
}

func withClock(clock clockwork.Clock) func(*Server) {
	return func(s *Server) {
		s.clock = clock
		s.startTime = clock.Now()
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}
