package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dispatch/cmd"
	"dispatch/internal/pkg/metrics"

	"github.com/labstack/gommon/log"
)

func main() {
	cfg, err := cmd.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, syncLogger, err := cmd.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer syncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	app, err := cmd.NewCompositionRoot(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		syncLogger()
		os.Exit(1)
	}
	defer app.Close()

	if cfg.SeedDemo {
		if err = app.Seed(ctx); err != nil {
			logger.Error("Failed to seed demo data", "error", err)
		}
	}

	if err = app.Run(ctx); err != nil {
		logger.Error("Stopped with error", "error", err)
		app.Close()
		syncLogger()
		os.Exit(1)
	}
	logger.Info("Stopped")
}
