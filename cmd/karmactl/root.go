package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ew73/slack-karma/internal/adapter/storage"
	"github.com/ew73/slack-karma/internal/app"
	"github.com/ew73/slack-karma/internal/platform/config"
	"github.com/ew73/slack-karma/internal/platform/logging"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

// storeFlags mirror the server's store configuration; each defaults to the
// matching environment variable.
type storeFlags struct {
	backend     string
	redisURL    string
	redisKey    string
	databaseURL string
	sqlitePath  string
	document    string
	timeout     time.Duration
	logLevel    string
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (f *storeFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.backend, "backend", envOr("STORE_BACKEND", ""), "store backend (redis, postgres, sqlite)")
	pf.StringVar(&f.redisURL, "redis-url", envOr("REDIS_URL", ""), "Redis URL")
	pf.StringVar(&f.redisKey, "redis-key", envOr("REDIS_KEY", "karma"), "Redis key holding the karma document")
	pf.StringVar(&f.databaseURL, "database-url", envOr("DATABASE_URL", ""), "PostgreSQL URL")
	pf.StringVar(&f.sqlitePath, "sqlite-path", envOr("SQLITE_PATH", "karma.db"), "SQLite database file")
	pf.StringVar(&f.document, "document", envOr("KARMA_DOCUMENT", "default"), "document name for SQL backends")
	pf.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall command timeout")
	pf.StringVar(&f.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")
}

func (f *storeFlags) options() storage.Options {
	return storage.Options{
		Backend:     f.backend,
		RedisURL:    f.redisURL,
		RedisKey:    f.redisKey,
		DatabaseURL: f.databaseURL,
		SQLitePath:  f.sqlitePath,
		Document:    f.document,
	}
}

// withService opens the store, runs fn against a karma service and closes the store.
func (f *storeFlags) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.KarmaService) error) error {
	return f.withBackend(cmd, func(ctx context.Context, b *storage.Backend) error {
		svc := app.NewKarmaService(app.HandlerConfig{}, b.Store, clockwork.NewRealClock())
		return fn(ctx, svc)
	})
}

var errNoPersistentBackend = errors.New("no persistent store selected: pass --backend redis|postgres|sqlite or set STORE_BACKEND")

func (f *storeFlags) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *storage.Backend) error) error {
	// The memory backend lives inside the server process; karmactl would only see an empty copy.
	if f.backend == "" || f.backend == config.BackendMemory {
		return errNoPersistentBackend
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	b, err := storage.Open(ctx, f.options())
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	return fn(ctx, b)
}

func newRootCmd() *cobra.Command {
	flags := &storeFlags{}

	root := &cobra.Command{
		Use:           "karmactl",
		Short:         "Inspect and edit the karma store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger(flags.logLevel, "text")
		},
	}
	flags.register(root)

	root.AddCommand(
		newListCmd(flags),
		newGetCmd(flags),
		newSetCmd(flags),
		newMigrateCmd(flags),
		newVersionCmd(),
	)
	return root
}

// sanitizeURL hides the password of a connection URL for display.
func sanitizeURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return raw
	}
	scheme := strings.Index(raw, "://")
	if scheme < 0 || scheme > at {
		return raw
	}
	creds := raw[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return raw[:scheme+3] + user + ":***" + raw[at:]
	}
	return raw
}

func describeTarget(f *storeFlags) string {
	switch f.backend {
	case config.BackendRedis:
		return fmt.Sprintf("redis %s key %q", sanitizeURL(f.redisURL), f.redisKey)
	case config.BackendPostgres:
		return fmt.Sprintf("postgres %s document %q", sanitizeURL(f.databaseURL), f.document)
	case config.BackendSQLite:
		return fmt.Sprintf("sqlite %s document %q", f.sqlitePath, f.document)
	default:
		return f.backend
	}
}
