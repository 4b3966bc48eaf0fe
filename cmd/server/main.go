package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ew73/slack-karma/internal/adapter/httpserver"
	"github.com/ew73/slack-karma/internal/adapter/metrics"
	"github.com/ew73/slack-karma/internal/adapter/storage"
	"github.com/ew73/slack-karma/internal/app"
	"github.com/ew73/slack-karma/internal/platform/config"
	"github.com/ew73/slack-karma/internal/platform/logging"
	"github.com/ew73/slack-karma/internal/platform/version"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	storeConnectTimeout = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func runGracefulShutdown(srv *httpserver.Server, backend *storage.Backend) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if err := backend.Close(); err != nil {
			slog.Error("Failed to close karma store", "backend", backend.Name, "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, reg prometheus.Registerer) *storage.Backend {
	ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
	defer cancel()

	opts := storage.OptionsFromConfig(cfg)
	opts.StoreMetrics = metrics.NewStoreMetrics(reg)
	if cfg.StoreBackend == config.BackendRedis {
		opts.RedisMetrics = metrics.NewRedisMetrics(reg)
	}

	backend, err := storage.Open(ctx, opts)
	if err != nil {
		slog.Error("Failed to open karma store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	slog.Info("Karma store ready", "backend", backend.Name)
	return backend
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	v := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", v.Version, "commit", v.Commit)

	reg := metrics.NewRegistry()
	backend := setupStore(cfg, reg)

	karma := app.NewKarmaService(app.HandlerConfig{
		WebhookSecret: cfg.WebhookSecret,
		BotName:       cfg.BotName,
	}, backend.Store, clock)

	healthChecks := []httpserver.HealthCheck{
		{Name: backend.Name, Check: backend.Ping},
	}
	srv := httpserver.NewServer(cfg, karma, reg, healthChecks, clock)

	done := runGracefulShutdown(srv, backend)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
