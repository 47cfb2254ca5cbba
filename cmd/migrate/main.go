// Command migrate applies the Postgres schema and the optional ClickHouse
// history schema. Both are embedded in the binary; -path reads Postgres
// migrations from disk instead.
//
// Usage:
//
//	migrate                          # apply pending Postgres migrations
//	migrate -db all                  # Postgres, then ClickHouse when enabled
//	migrate -action down             # roll back the last Postgres migration
//	migrate -action version
//	migrate -action force -version 1 # clear a dirty flag after a manual fix
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wallet-portfolio/internal/config"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/storage"
)

type options struct {
	action  string
	db      string
	path    string
	version int
}

func main() {
	var opts options
	flag.StringVar(&opts.action, "action", "up", "Migration action: up, down, version, force")
	flag.StringVar(&opts.db, "db", "postgres", "Target store: postgres, clickhouse, all")
	flag.StringVar(&opts.path, "path", "", "Postgres migrations directory (default: embedded, or POSTGRES_MIGRATIONS_PATH)")
	flag.IntVar(&opts.version, "version", -1, "Version to record with -action force")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("migrate")

	if opts.path == "" {
		opts.path = cfg.Database.Postgres.MigrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"action": opts.action,
			"db":     opts.db,
		}).Error("Migration failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	switch opts.db {
	case "postgres":
		return migratePostgres(cfg, opts)
	case "clickhouse":
		return migrateClickHouse(ctx, cfg, opts.action)
	case "all":
		if err := migratePostgres(cfg, opts); err != nil {
			return err
		}
		if !cfg.Database.ClickHouse.Enabled || opts.action != "up" {
			logging.GetGlobalLogger().WithField("action", opts.action).Info("Skipping ClickHouse history schema")
			return nil
		}
		return migrateClickHouse(ctx, cfg, opts.action)
	default:
		return fmt.Errorf("unknown database: %s", opts.db)
	}
}

func migratePostgres(cfg *config.Config, opts options) error {
	logger := logging.GetGlobalLogger().WithComponent("migrate").WithField("db", "postgres")
	url := cfg.Database.Postgres.DSN()
	source := opts.path
	if source == "" {
		source = "embedded"
	}
	logger = logger.WithField("source", source)

	switch opts.action {
	case "up":
		if err := storage.RunMigrations(url, opts.path); err != nil {
			return err
		}
	case "down":
		if err := storage.RollbackMigrations(url, opts.path); err != nil {
			return err
		}
	case "force":
		if opts.version < 0 {
			return fmt.Errorf("-action force needs -version")
		}
		if err := storage.ForceMigrationVersion(url, opts.path, opts.version); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown action: %s", opts.action)
	}

	version, dirty, err := storage.MigrationVersion(url, opts.path)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"action":  opts.action,
		"version": version,
		"dirty":   dirty,
	}).Info("Postgres schema")
	return nil
}

func migrateClickHouse(ctx context.Context, cfg *config.Config, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse history schema only supports -action up")
	}
	logger := logging.GetGlobalLogger().WithComponent("migrate").WithField("db", "clickhouse")

	db, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Error closing ClickHouse connection")
		}
	}()

	if err := storage.RunClickHouseMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("ClickHouse history schema applied")
	return nil
}
