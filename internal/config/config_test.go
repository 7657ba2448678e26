package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CacheBackend != CacheBackendPostgres {
		t.Errorf("CacheBackend = %q, want %q", cfg.CacheBackend, CacheBackendPostgres)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.PageSize != 100 || cfg.MaxResults != 300 {
		t.Errorf("PageSize/MaxResults = %d/%d, want 100/300", cfg.PageSize, cfg.MaxResults)
	}
	if cfg.PoolSize != 5 {
		t.Errorf("PoolSize = %d, want 5", cfg.PoolSize)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want disabled", cfg.SweepInterval)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
	if cfg.SkipEmptyFanout {
		t.Error("SkipEmptyFanout should default to false")
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
search:
  page_size: 50
  max_retries: 0
  retry_max_elapsed: 5s
cache:
  backend: memory
  ttl: 30m
refresh:
  pool_size: 3
  batch_delay: 1s
  skip_empty_fanout: true
sweep:
  interval: 24h
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REFRESH_POOL_SIZE", "8")
	t.Setenv("SEARCH_CLIENT_ID", "client")
	t.Setenv("SEARCH_MAX_RESULTS", "1000")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "max results") {
		t.Fatalf("Load() error = %v, want horizon rejected", err)
	}

	t.Setenv("SEARCH_MAX_RESULTS", "200")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxResults != 200 {
		t.Errorf("MaxResults = %d, want 200 from env", cfg.MaxResults)
	}
	if cfg.RetryMaxElapsed != 5*time.Second {
		t.Errorf("RetryMaxElapsed = %v, want 5s from file", cfg.RetryMaxElapsed)
	}
	if cfg.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50 from file", cfg.PageSize)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0 from file", cfg.MaxRetries)
	}
	if cfg.CacheBackend != CacheBackendMemory || cfg.CacheTTL != 30*time.Minute {
		t.Errorf("cache = %s/%v, want memory/30m", cfg.CacheBackend, cfg.CacheTTL)
	}
	if cfg.PoolSize != 8 {
		t.Errorf("PoolSize = %d, want 8 from env", cfg.PoolSize)
	}
	if cfg.BatchDelay != time.Second {
		t.Errorf("BatchDelay = %v, want 1s", cfg.BatchDelay)
	}
	if !cfg.SkipEmptyFanout {
		t.Error("SkipEmptyFanout = false, want true from file")
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Errorf("SweepInterval = %v, want 24h", cfg.SweepInterval)
	}
	if cfg.SearchClientID != "client" {
		t.Errorf("SearchClientID = %q, want client", cfg.SearchClientID)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfigFile(t, "cache: [unclosed"))

	if _, err := Load(); err == nil {
		t.Error("Load() expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"redis without url", func(c *Config) { c.CacheBackend = CacheBackendRedis }, "REDIS_URL"},
		{"redis with url", func(c *Config) { c.CacheBackend = CacheBackendRedis; c.RedisURL = "redis://localhost:6379" }, ""},
		{"unknown backend", func(c *Config) { c.CacheBackend = "memcached" }, "unknown cache backend"},
		{"page size too large", func(c *Config) { c.PageSize = 101 }, "page size"},
		{"full horizon", func(c *Config) { c.MaxResults = 300 }, ""},
		{"horizon beyond 300", func(c *Config) { c.MaxResults = 1000 }, "max results"},
		{"zero horizon", func(c *Config) { c.MaxResults = 0 }, "max results"},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, "pool size"},
		{"short secret in production", func(c *Config) { c.Env = "production"; c.SessionSecret = "short" }, "SESSION_SECRET"},
		{"short secret in development", func(c *Config) { c.SessionSecret = "short" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := defaults()
	cfg.LogLevel = "debug"
	if got := cfg.NewLogger().GetLevel(); got != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}

	cfg.LogLevel = "nonsense"
	if got := cfg.NewLogger().GetLevel(); got != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", got)
	}
}

func TestLocation(t *testing.T) {
	cfg := defaults()
	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Error("invalid time zone should fall back to UTC")
	}
}
