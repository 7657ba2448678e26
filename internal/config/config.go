package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/collector"
)

// Cache backends
const (
	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
)

// Config holds all application configuration. Values come from built-in
// defaults, then the optional YAML tuning file, then environment variables.
type Config struct {
	// Environment
	Env      string // "development", "production", etc.
	LogLevel string // logrus level name

	// Server
	ServerAddr string
	BaseURL    string

	// Database
	DatabaseURL string

	// Redis backs sessions and, with CacheBackend=redis, the snapshot cache.
	RedisURL string

	// Session
	SessionSecret string // Used for signing cookies (min 32 chars)

	// Owner header set by an authenticating proxy, e.g. "X-Forwarded-User".
	// Empty means owners come from the session only.
	OwnerHeader string

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Rate limiting, requests per minute per IP
	RateLimitMax int

	// Search API
	SearchBaseURL      string
	SearchClientID     string
	SearchClientSecret string
	PageSize           int
	MaxResults         int
	PageDelay          time.Duration
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxElapsed    time.Duration // give up on a page after this long

	// Snapshot cache
	CacheBackend string
	CacheTTL     time.Duration

	// Owner refresh
	PoolSize        int
	BatchDelay      time.Duration
	SkipEmptyFanout bool

	// System sweep
	SweepDelay    time.Duration
	SweepInterval time.Duration // 0 disables the in-process sweeper

	// API
	HistoryLimit int
	Timezone     string // used for export file names
}

// Load reads .env, the YAML tuning file and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaults()

	yc, err := LoadYAMLConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	yc.applyTo(cfg)

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Env:           "development",
		LogLevel:      "info",
		ServerAddr:    ":3000",
		BaseURL:       "http://localhost:3000",
		DatabaseURL:   "postgres://localhost:5432/rankwatch?sslmode=disable",
		SessionSecret: "change-me-in-production-min-32-chars",
		RateLimitMax:  100,

		SearchBaseURL:   "https://openapi.naver.com/v1/search/shop.json",
		PageSize:        100,
		MaxResults:      300,
		PageDelay:       100 * time.Millisecond,
		RequestTimeout:  10 * time.Second,
		MaxRetries:      2,
		RetryBaseDelay:  500 * time.Millisecond,
		RetryMaxElapsed: 30 * time.Second,

		CacheBackend: CacheBackendPostgres,
		CacheTTL:     60 * time.Minute,

		PoolSize:   5,
		BatchDelay: 200 * time.Millisecond,

		SweepDelay: 500 * time.Millisecond,

		HistoryLimit: 50,
		Timezone:     "Asia/Seoul",
	}
}

func (c *Config) applyEnv() {
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ServerAddr = getEnv("SERVER_ADDR", c.ServerAddr)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.OwnerHeader = getEnv("OWNER_HEADER", c.OwnerHeader)
	c.CORSOrigins = getEnv("CORS_ORIGINS", c.CORSOrigins)
	c.RateLimitMax = getInt("RATE_LIMIT_MAX", c.RateLimitMax)

	c.SearchBaseURL = getEnv("SEARCH_API_URL", c.SearchBaseURL)
	c.SearchClientID = getEnv("SEARCH_CLIENT_ID", c.SearchClientID)
	c.SearchClientSecret = getEnv("SEARCH_CLIENT_SECRET", c.SearchClientSecret)
	c.PageSize = getInt("SEARCH_PAGE_SIZE", c.PageSize)
	c.MaxResults = getInt("SEARCH_MAX_RESULTS", c.MaxResults)
	c.PageDelay = getDuration("SEARCH_PAGE_DELAY", c.PageDelay)
	c.RequestTimeout = getDuration("SEARCH_TIMEOUT", c.RequestTimeout)
	c.MaxRetries = getInt("SEARCH_MAX_RETRIES", c.MaxRetries)
	c.RetryBaseDelay = getDuration("SEARCH_RETRY_DELAY", c.RetryBaseDelay)
	c.RetryMaxElapsed = getDuration("SEARCH_RETRY_MAX_ELAPSED", c.RetryMaxElapsed)

	c.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", c.CacheBackend))
	c.CacheTTL = getDuration("CACHE_TTL", c.CacheTTL)

	c.PoolSize = getInt("REFRESH_POOL_SIZE", c.PoolSize)
	c.BatchDelay = getDuration("REFRESH_BATCH_DELAY", c.BatchDelay)
	c.SkipEmptyFanout = getBool("SKIP_EMPTY_FANOUT", c.SkipEmptyFanout)

	c.SweepDelay = getDuration("SWEEP_DELAY", c.SweepDelay)
	c.SweepInterval = getDuration("SWEEP_INTERVAL", c.SweepInterval)

	c.HistoryLimit = getInt("HISTORY_LIMIT", c.HistoryLimit)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch c.CacheBackend {
	case CacheBackendPostgres, CacheBackendMemory:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}

	if c.PageSize <= 0 || c.PageSize > 100 {
		errs = append(errs, fmt.Errorf("page size must be between 1 and 100, got %d", c.PageSize))
	}
	if c.MaxResults <= 0 || c.MaxResults > collector.DefaultMaxResults {
		errs = append(errs, fmt.Errorf("max results must be between 1 and %d, got %d", collector.DefaultMaxResults, c.MaxResults))
	}
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("refresh pool size must be positive, got %d", c.PoolSize))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit))
	}
	if !c.IsDev() && len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

// NewLogger builds the application logger for the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if !c.IsDev() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
