// Package main provides the refresh worker entry point for the wallet portfolio service.
//
// Usage:
//
//	worker            # refresh every REFRESH_INTERVAL until interrupted
//	worker -once      # run a single refresh pass and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wallet-portfolio/internal/app"
	"github.com/wallet-portfolio/internal/config"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/worker"
)

func main() {
	var (
		once       = flag.Bool("once", false, "Run a single refresh pass and exit")
		payloadDir = flag.String("payloads", "", "Payload directory (overrides REFRESH_PAYLOAD_DIR)")
	)
	flag.Parse()

	fmt.Println("Wallet Portfolio Refresh Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *payloadDir != "" {
		cfg.Refresh.PayloadDir = *payloadDir
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	a, err := app.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize stores")
	}
	defer a.Close()

	job, err := worker.NewRefreshJob(&worker.RefreshJobConfig{
		Directory:    a.Users,
		Source:       provider.NewFileSource(cfg.Refresh.PayloadDir),
		Refresher:    a.RefreshService,
		Recomputer:   a.PortfolioService,
		RecomputeAll: cfg.Refresh.RecomputeAll,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create refresh job")
	}

	logger.WithFields(map[string]interface{}{
		"payload_dir":   cfg.Refresh.PayloadDir,
		"interval":      cfg.Refresh.Interval.String(),
		"recompute_all": cfg.Refresh.RecomputeAll,
	}).Info("Refresh job configured")

	if *once {
		res, err := job.Run(ctx)
		if err != nil {
			logger.WithError(err).Error("Refresh run failed")
			a.Close()
			os.Exit(1)
		}
		logger.Infof("Refreshed %d/%d wallets, recomputed %d users", res.Refreshed, res.Wallets, res.Recomputed)
		return
	}

	scheduler, err := worker.NewScheduler(job, cfg.Refresh.Interval)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping scheduler...")

	if err := scheduler.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping scheduler")
	}
	status := scheduler.GetStatus()
	logger.Infof("Scheduler stopped after %d runs. Goodbye!", status.Runs)
}
