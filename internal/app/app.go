// Package app wires stores and services from configuration. The server,
// the worker and the admin CLI share this graph.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/wallet-portfolio/internal/config"
	"github.com/wallet-portfolio/internal/export"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/metrics"
	"github.com/wallet-portfolio/internal/retry"
	"github.com/wallet-portfolio/internal/service"
	"github.com/wallet-portfolio/internal/storage"
)

// App holds the open connections and the services built on them
type App struct {
	Config *config.Config

	Postgres   *storage.PostgresDB
	Redis      *storage.RedisCache   // nil when REDIS_ENABLED is false
	ClickHouse *storage.ClickHouseDB // nil when CLICKHOUSE_ENABLED is false

	Users     *storage.UserRepository
	Wallets   *storage.WalletRepository
	Assets    *storage.AssetRepository
	Portfolio *storage.PortfolioRepository
	Spam      *storage.SpamFilterRepository

	UserService      *service.UserService
	PortfolioService *service.PortfolioService
	RefreshService   *service.RefreshService

	stopPump context.CancelFunc
}

// Open connects to Postgres, backing off while the database starts up, and
// when enabled to Redis and ClickHouse. Optional stores that cannot be reached are logged and left out.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.FromContext(ctx).WithComponent("app")

	var postgres *storage.PostgresDB
	connect := retry.DefaultConfig()
	connect.MaxAttempts = cfg.Database.Postgres.ConnectAttempts
	_, err := retry.Do(ctx, connect, func(ctx context.Context, _ int) error {
		var cerr error
		postgres, cerr = storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	a := &App{
		Config:    cfg,
		Postgres:  postgres,
		Users:     storage.NewUserRepository(postgres),
		Wallets:   storage.NewWalletRepository(postgres),
		Assets:    storage.NewAssetRepository(postgres),
		Portfolio: storage.NewPortfolioRepository(postgres),
		Spam:      storage.NewSpamFilterRepository(postgres),
	}

	var opts []service.PortfolioOption
	var userCache service.ReportCache

	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(ctx, &cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unreachable, report cache disabled")
		} else {
			a.Redis = redis
			cache := storage.NewReportCache(redis, cfg.Cache.TTL)
			opts = append(opts, service.WithReportCache(cache))
			userCache = cache
		}
	}

	if cfg.Database.ClickHouse.Enabled {
		ch, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unreachable, portfolio history disabled")
		} else {
			a.ClickHouse = ch
			opts = append(opts, service.WithHistory(storage.NewHistoryRepository(ch)))
		}
	}

	a.UserService = service.NewUserService(a.Users, userCache)
	a.PortfolioService = service.NewPortfolioService(a.Portfolio, a.Spam, opts...)
	var refreshOpts []service.RefreshOption
	if userCache != nil {
		refreshOpts = append(refreshOpts, service.WithCacheInvalidation(a.Users, userCache))
	}
	a.RefreshService = service.NewRefreshService(a.Wallets, a.Assets, refreshOpts...)

	pumpCtx, cancel := context.WithCancel(context.Background())
	a.stopPump = cancel
	metrics.StartPoolStatsPump(logging.WithLogger(pumpCtx, logger), postgres.Pool(), 15*time.Second)

	logger.WithFields(map[string]interface{}{
		"report_cache": a.Redis != nil,
		"history":      a.ClickHouse != nil,
	}).Info("Stores connected")
	return a, nil
}

// Exporter builds the S3 exporter, or returns an error when no bucket is set
func (a *App) Exporter(ctx context.Context) (*export.S3Exporter, error) {
	return export.NewS3Exporter(ctx, &a.Config.Export)
}

// Close releases every connection
func (a *App) Close() {
	if a.stopPump != nil {
		a.stopPump()
	}
	if a.ClickHouse != nil {
		_ = a.ClickHouse.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Postgres.Close()
}
