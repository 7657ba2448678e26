package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file.
type YAMLConfig struct {
	Search  SearchTuning  `yaml:"search"`
	Cache   CacheTuning   `yaml:"cache"`
	Refresh RefreshTuning `yaml:"refresh"`
	Sweep   SweepTuning   `yaml:"sweep"`
}

// SearchTuning controls how the search API is paged.
type SearchTuning struct {
	URL             string        `yaml:"url"`
	PageSize        int           `yaml:"page_size"`
	MaxResults      int           `yaml:"max_results"`
	PageDelay       time.Duration `yaml:"page_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      *int          `yaml:"max_retries"` // 0 disables retries
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

// CacheTuning selects the snapshot cache backend and its freshness window.
type CacheTuning struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

// RefreshTuning controls owner refresh concurrency.
type RefreshTuning struct {
	PoolSize        int           `yaml:"pool_size"`
	BatchDelay      time.Duration `yaml:"batch_delay"`
	SkipEmptyFanout *bool         `yaml:"skip_empty_fanout"`
}

// SweepTuning controls the system-wide sweep.
type SweepTuning struct {
	Delay    time.Duration `yaml:"delay"`
	Interval time.Duration `yaml:"interval"`
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	path := getEnv("CONFIG_FILE", "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyTo copies every value set in the file onto cfg.
func (y *YAMLConfig) applyTo(cfg *Config) {
	if y == nil {
		return
	}

	setString(&cfg.SearchBaseURL, y.Search.URL)
	setInt(&cfg.PageSize, y.Search.PageSize)
	setInt(&cfg.MaxResults, y.Search.MaxResults)
	setDuration(&cfg.PageDelay, y.Search.PageDelay)
	setDuration(&cfg.RequestTimeout, y.Search.Timeout)
	if y.Search.MaxRetries != nil {
		cfg.MaxRetries = *y.Search.MaxRetries
	}
	setDuration(&cfg.RetryBaseDelay, y.Search.RetryDelay)
	setDuration(&cfg.RetryMaxElapsed, y.Search.RetryMaxElapsed)

	setString(&cfg.CacheBackend, y.Cache.Backend)
	setDuration(&cfg.CacheTTL, y.Cache.TTL)

	setInt(&cfg.PoolSize, y.Refresh.PoolSize)
	setDuration(&cfg.BatchDelay, y.Refresh.BatchDelay)
	if y.Refresh.SkipEmptyFanout != nil {
		cfg.SkipEmptyFanout = *y.Refresh.SkipEmptyFanout
	}

	setDuration(&cfg.SweepDelay, y.Sweep.Delay)
	setDuration(&cfg.SweepInterval, y.Sweep.Interval)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
