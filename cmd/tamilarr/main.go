package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/tamilarr/internal/api"
	"github.com/amaumene/tamilarr/internal/config"
	"github.com/amaumene/tamilarr/internal/controllers"
	"github.com/amaumene/tamilarr/internal/metrics"
	"github.com/amaumene/tamilarr/internal/models"
	"github.com/amaumene/tamilarr/internal/scheduler"
	"github.com/amaumene/tamilarr/internal/services/forum"
	"github.com/amaumene/tamilarr/internal/services/trackers"
	"github.com/amaumene/tamilarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Tamilarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	metrics.Init()

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	if cfg.PurgeOnStart {
		if err := db.PurgeAll(); err != nil {
			return fmt.Errorf("failed to purge database: %w", err)
		}
		logger.Warn("Database purged on startup")
	}

	// 4. Load blacklist
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load blacklist, continuing without it")
		blacklist = &utils.Blacklist{}
	} else {
		logger.Info("Blacklist loaded")
	}

	// 5. Initialize services
	forumClient := forum.NewClient(cfg, logger)
	logger.Info("Forum client initialized")

	trackersClient := trackers.NewClient(cfg, logger)
	logger.Info("Trackers client initialized")

	// 6. Initialize controllers
	crawlCtrl := controllers.NewCrawlController(db, forumClient, blacklist, cfg, logger)
	logger.Info("Controllers initialized")

	// 7. Initialize scheduler
	sched := scheduler.NewScheduler(crawlCtrl, trackersClient, cfg.CrawlInterval, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 8. Initialize HTTP server
	server := api.NewServer(cfg, db, crawlCtrl, trackersClient, logger)

	// Start server in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 9. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Tamilarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Tamilarr stopped")
	return nil
}
