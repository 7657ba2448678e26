// Package app wires the rank tracking services from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/gofiber/storage/redis/v3"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/collector"
	"rankwatch/internal/config"
	"rankwatch/internal/db"
	"rankwatch/internal/metrics"
	"rankwatch/internal/rankcache"
	"rankwatch/internal/ranking"
)

// App holds the long-lived services shared by the server and the sweep command.
type App struct {
	DB           *db.DB
	Redis        *redis.Storage // nil unless REDIS_URL is set
	Cache        *rankcache.Cache
	Pipeline     *ranking.Pipeline
	Orchestrator *ranking.Orchestrator
	Sweeper      *ranking.Sweeper
	Tracker      *ranking.Tracker
}

// New connects to the database, runs migrations and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations completed successfully")

	a := &App{DB: database}
	if cfg.RedisURL != "" {
		a.Redis = rankcache.NewRedisStorage(cfg.RedisURL)
	}

	backend, err := a.cacheBackend(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := quartz.NewReal()
	a.Cache = rankcache.New(backend, logger, rankcache.WithTTL(cfg.CacheTTL))

	search := collector.New(collector.Config{
		BaseURL:         cfg.SearchBaseURL,
		ClientID:        cfg.SearchClientID,
		ClientSecret:    cfg.SearchClientSecret,
		PageSize:        cfg.PageSize,
		MaxResults:      cfg.MaxResults,
		PageDelay:       cfg.PageDelay,
		Timeout:         cfg.RequestTimeout,
		MaxRetries:      uint64(max(cfg.MaxRetries, 0)),
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxElapsed: cfg.RetryMaxElapsed,
	}, logger)

	fanout := ranking.NewFanoutUpdater(database, clock, logger)
	a.Pipeline = ranking.NewPipeline(a.Cache, search, fanout, logger, ranking.WithSkipEmptyFanout(cfg.SkipEmptyFanout))
	a.Orchestrator = ranking.NewOrchestrator(database, a.Pipeline, ranking.NewPool(cfg.PoolSize, cfg.BatchDelay, clock), clock, logger)
	a.Sweeper = ranking.NewSweeper(database, a.Pipeline, cfg.SweepDelay, clock, logger)
	a.Tracker = ranking.NewTracker(database, a.Pipeline, clock, logger)

	metrics.Init(database, logger)

	logger.WithFields(logrus.Fields{
		"cache_backend": cfg.CacheBackend,
		"cache_ttl":     cfg.CacheTTL,
		"pool_size":     cfg.PoolSize,
	}).Info("rank tracking services ready")
	return a, nil
}

func (a *App) cacheBackend(cfg *config.Config) (rankcache.Backend, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendPostgres:
		return rankcache.NewPostgresBackend(a.DB), nil
	case config.CacheBackendRedis:
		if a.Redis == nil {
			return nil, fmt.Errorf("cache backend %q requires REDIS_URL", cfg.CacheBackend)
		}
		return rankcache.NewStorageBackend(a.Redis, cfg.CacheTTL), nil
	case config.CacheBackendMemory:
		return rankcache.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Close releases the database pool and the Redis connection.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.DB.Close()
}
