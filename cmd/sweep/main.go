// Command sweep refreshes every tracked keyword once and exits. It is meant
// to be run from cron or a scheduled job.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"rankwatch/internal/app"
	"rankwatch/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}

	result, err := services.Sweeper.SweepAll(ctx)
	services.Close()
	if err != nil {
		logger.WithError(err).Error("sweep aborted")
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"keywords": result.Keywords,
		"updated":  result.Updated,
		"failed":   len(result.Failed),
		"elapsed":  result.Elapsed,
	}).Info("sweep complete")
	if len(result.Failed) > 0 {
		os.Exit(2)
	}
}
