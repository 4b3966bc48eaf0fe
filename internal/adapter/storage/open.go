// Package storage opens the configured karma document backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ew73/slack-karma/internal/adapter/memory"
	"github.com/ew73/slack-karma/internal/adapter/metrics"
	"github.com/ew73/slack-karma/internal/adapter/postgres"
	"github.com/ew73/slack-karma/internal/adapter/redis"
	"github.com/ew73/slack-karma/internal/adapter/sqlite"
	"github.com/ew73/slack-karma/internal/domain"
	"github.com/ew73/slack-karma/internal/platform/config"
	goredis "github.com/redis/go-redis/v9"
)

// Options selects and configures a backend. Metrics fields are optional.
type Options struct {
	Backend     string
	RedisURL    string
	RedisKey    string
	DatabaseURL string
	SQLitePath  string
	Document    string

	StoreMetrics *metrics.StoreMetrics
	RedisMetrics *metrics.RedisMetrics
}

// OptionsFromConfig maps the process configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		RedisKey:    cfg.RedisKey,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		Document:    cfg.DocumentName,
	}
}

// Backend is an opened document store together with its health probe and closer.
type Backend struct {
	Name  string
	Store domain.DocumentStore
	Ping  func(ctx context.Context) error
	Close func() error
}

var ErrUnknownBackend = errors.New("unknown store backend")

// Open connects to the backend named in opts. For postgres it also applies
// pending migrations; for sqlite it creates the schema.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	b, err := open(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.StoreMetrics != nil {
		b.Store = metrics.NewInstrumentedStore(b.Store, b.Name, opts.StoreMetrics)
	}
	return b, nil
}

func open(ctx context.Context, opts Options) (*Backend, error) {
	switch opts.Backend {
	case config.BackendMemory, "":
		store := memory.NewStore()
		return &Backend{
			Name:  config.BackendMemory,
			Store: store,
			Ping:  store.Ping,
			Close: func() error { return nil },
		}, nil

	case config.BackendRedis:
		var hooks []goredis.Hook
		if opts.RedisMetrics != nil {
			hooks = append(hooks, redis.NewMetricsHook(opts.RedisMetrics))
		}
		breaker := redis.NewCircuitBreakerHook(redis.DefaultBreakerSettings(), opts.RedisMetrics)
		hooks = append(hooks, breaker)

		rdb, err := redis.NewClient(ctx, opts.RedisURL, hooks...)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		store := redis.NewDocumentStore(rdb, opts.RedisKey)
		return &Backend{
			Name:  config.BackendRedis,
			Store: store,
			Ping:  breaker.HealthCheck(store.Ping),
			Close: rdb.Close,
		}, nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		store := postgres.NewDocumentStore(pool, opts.Document)
		return &Backend{
			Name:  config.BackendPostgres,
			Store: store,
			Ping:  store.Ping,
			Close: func() error { pool.Close(); return nil },
		}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		store := sqlite.NewDocumentStore(db, opts.Document)
		return &Backend{
			Name:  config.BackendSQLite,
			Store: store,
			Ping:  store.Ping,
			Close: db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
