package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hydrakit/entitlements/pkg/config"
	"github.com/hydrakit/entitlements/pkg/logger"
	"github.com/hydrakit/entitlements/pkg/pg"
	"github.com/hydrakit/entitlements/pkg/redis"
	"github.com/hydrakit/entitlements/pkg/subscription"
	"github.com/hydrakit/entitlements/pkg/substore"
)

// appConfig holds the process-level settings that do not belong to any one
// component: logging, which providers to enable, and whether the provider
// response cache is shared via Redis or kept in-process.
type appConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DefaultProvider string `env:"SUBSCRIPTION_DEFAULT_PROVIDER" envDefault:"remote"`
	EnableRemote    bool   `env:"SUBSCRIPTION_ENABLE_REMOTE" envDefault:"true"`
	EnableComped    bool   `env:"SUBSCRIPTION_ENABLE_COMPED" envDefault:"true"`

	// SharedResponseCache switches the provider response cache to Redis so
	// every process behind the same REDIS_URL sees one cache.
	SharedResponseCache bool `env:"SUBSCRIPTION_SHARED_CACHE" envDefault:"false"`
}

// app carries the wired object graph commands operate on.
type app struct {
	cfg       appConfig
	pgCfg     pg.Config
	log       *slog.Logger
	pool      *pgxpool.Pool
	rdb       *goredis.Client
	store     *substore.Store
	prefs     *substore.PrefStore
	directory *substore.Directory
	registry  *subscription.Registry
	service   *subscription.Service
	refresher *subscription.Refresher
	grantor   *subscription.Grantor
	migrator  *substore.Migrator
}

// close releases the app's connections. Safe to call on a partially wired app.
func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// wireApp builds the full object graph. It connects to Postgres (and Redis
// when the shared cache is enabled), so it is called from each command's RunE
// rather than at root construction: `--help` must not need a database.
func wireApp(ctx context.Context) (*app, error) {
	a := &app{}

	if err := config.Load(&a.cfg); err != nil {
		return nil, err
	}
	if err := config.Load(&a.pgCfg); err != nil {
		return nil, err
	}

	a.log = newLogger(a.cfg)

	pool, err := pg.Connect(ctx, a.pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool

	a.directory = substore.NewDirectory(pool)
	a.store = substore.New(pool, a.directory, substore.WithLogger(a.log))
	a.prefs = substore.NewPrefStore(pool)
	a.migrator = substore.NewMigrator(pool, substore.WithMigratorLogger(a.log))

	respCache, err := a.newResponseCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	registry, err := subscription.NewRegistry(a.cfg.DefaultProvider, a.providerSpecs(respCache))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build provider registry: %w", err)
	}
	a.registry = registry

	a.service = subscription.NewService(registry, subscription.WithServiceLogger(a.log))
	a.refresher = subscription.NewRefresher(a.service, a.store, subscription.WithRefresherLogger(a.log))
	a.grantor = subscription.NewGrantor(registry, a.directory)

	return a, nil
}

func (a *app) newResponseCache(ctx context.Context) (subscription.ResponseCache, error) {
	if !a.cfg.SharedResponseCache {
		return subscription.NewMemoryResponseCache(time.Minute), nil
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = client
	return subscription.NewRedisResponseCache(client), nil
}

// providerSpecs lists every provider the deployment knows about, in the
// order aggregate reads consult them. Disabled providers keep their slot
// with a nil factory so explicit requests for them fail loudly instead of
// falling through to the default.
func (a *app) providerSpecs(respCache subscription.ResponseCache) []subscription.ProviderSpec {
	remote := subscription.ProviderSpec{ID: "remote"}
	if a.cfg.EnableRemote {
		remote.New = func() (subscription.Provider, error) {
			var cfg subscription.RemoteConfig
			if err := config.Load(&cfg); err != nil {
				return nil, err
			}
			return subscription.NewRemoteProvider("remote", cfg, respCache, a.store,
				subscription.WithRemoteLogger(a.log))
		}
	}

	comped := subscription.ProviderSpec{ID: "comped"}
	if a.cfg.EnableComped {
		comped.New = func() (subscription.Provider, error) {
			var cfg subscription.CompedConfig
			if err := config.Load(&cfg); err != nil {
				return nil, err
			}
			return subscription.NewCompedProvider(cfg, a.prefs, a.directory), nil
		}
	}

	return []subscription.ProviderSpec{remote, comped}
}

func newLogger(cfg appConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	format := logger.FormatJSON
	if cfg.LogFormat == "text" {
		format = logger.FormatText
	}

	return logger.New(logger.WithLevel(level), logger.WithFormat(format))
}
