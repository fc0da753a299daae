package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/plotfit/plotfit/internal/cache"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/events"
	"github.com/plotfit/plotfit/internal/handlers"
	"github.com/plotfit/plotfit/internal/logging"
	"github.com/plotfit/plotfit/internal/metrics"
	"github.com/plotfit/plotfit/internal/queue"
	"github.com/plotfit/plotfit/internal/router"
	"github.com/plotfit/plotfit/internal/seed"
	"github.com/plotfit/plotfit/internal/services"
	"github.com/plotfit/plotfit/internal/store"
	"github.com/plotfit/plotfit/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration; later edits only change the log level
	cfg, err := config.LoadWithWatcher(*configPath,
		func(updated *config.Config) {
			if err := logging.SetLevel(updated.Logging.Level); err != nil {
				logging.Warn("Ignoring log level change", "error", err)
				return
			}
			logging.Info("Log level updated", "level", updated.Logging.Level)
		},
		func(err error) {
			logging.Warn("Config reload failed", "error", err)
		})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("plotfit API starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to prepare directories", "error", err)
	}

	// Dataset store
	logger.Info("Opening dataset store", "backend", cfg.Storage.Backend)
	st, err := store.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open dataset store", "error", err)
	}
	defer func() { _ = st.Close() }()

	if cfg.Storage.SeedFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), utils.DefaultRequestTimeout)
		f, err := seed.Load(cfg.Storage.SeedFile)
		if err == nil {
			_, err = seed.Apply(ctx, st, f, logger)
		}
		cancel()
		if err != nil {
			logger.Fatal("Failed to seed dataset store", "file", cfg.Storage.SeedFile, "error", err)
		}
	}

	m := metrics.New()

	resultCache, err := cache.New(cfg.Regression.CacheSize)
	if err != nil {
		logger.Fatal("Failed to create result cache", "error", err)
	}

	// Change events (configurable backend)
	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	queueClient, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	bus := events.NewBus(queueClient, m, logger)
	defer func() { _ = bus.Close() }()

	if err := bus.Listen(func(e events.Event) {
		for _, name := range e.Datasets() {
			resultCache.InvalidateDataset(name)
		}
	}); err != nil {
		logger.Fatal("Failed to listen for dataset events", "error", err)
	}

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	handlers.Version = Version
	app := router.New(logger, *cfg, handlers.Services{
		Datasets:   services.NewDatasetService(logger, st, bus, resultCache),
		Regression: services.NewRegressionService(logger, st, resultCache, m, cfg.Regression),
		Transfer:   services.NewTransferService(logger, st, bus, resultCache),
	}, m)

	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
