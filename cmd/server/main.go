package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/app"
	"rankwatch/internal/config"
	"rankwatch/internal/jobs"
	"rankwatch/internal/server"
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
	defer services.Close()

	var sessionStorage fiber.Storage
	if services.Redis != nil {
		sessionStorage = services.Redis
	}

	srv := server.New(cfg, logger, sessionStorage)
	srv.RegisterRoutes(server.Dependencies{
		Items:     services.DB,
		Tracker:   services.Tracker,
		Refresher: services.Orchestrator,
		DB:        services.DB,
	})

	// Background sweep, off unless SWEEP_INTERVAL is set
	if cfg.SweepInterval > 0 {
		sweep := jobs.NewScheduledSweep(services.Sweeper, cfg.SweepInterval, quartz.NewReal(), logger)
		go sweep.Start(ctx)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		os.Exit(1)
	}
	logger.Info("server exited")
}
