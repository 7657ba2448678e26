// Package rankcache keeps the latest search snapshot per keyword so every
// tenant tracking a keyword shares one collection per TTL window.
package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = 60 * time.Minute

// ErrNotFound is returned by backends that hold no entry for a keyword.
var ErrNotFound = errors.New("rankcache: entry not found")

// Backend persists encoded snapshots. Implementations must upsert on Store.
type Backend interface {
	Load(ctx context.Context, keyword string) (payload []byte, cachedAt time.Time, err error)
	Store(ctx context.Context, keyword string, payload []byte, cachedAt time.Time) error
}

// Cache is a TTL-bounded snapshot store keyed by keyword only.
type Cache struct {
	backend Backend
	ttl     time.Duration
	clock   quartz.Clock
	logger  *logrus.Logger
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock replaces the real clock used for freshness checks.
func WithClock(clock quartz.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a cache over backend.
func New(backend Backend, logger *logrus.Logger, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     DefaultTTL,
		clock:   quartz.NewReal(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the snapshot for keyword if it was cached less than TTL ago.
// Stale, missing and undecodable entries are all reported as absent.
func (c *Cache) Get(ctx context.Context, keyword string) ([]models.ResultItem, bool, error) {
	payload, cachedAt, err := c.backend.Load(ctx, keyword)
	if errors.Is(err, ErrNotFound) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	entry := models.KeywordCacheEntry{Keyword: keyword, CachedAt: cachedAt}
	if !entry.IsFresh(c.clock.Now(), c.ttl) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	if err := json.Unmarshal(payload, &entry.Results); err != nil {
		c.logger.WithError(err).WithField("keyword", keyword).Warn("discarding undecodable cached snapshot")
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return entry.Results, true, nil
}

// Put upserts the snapshot for keyword and stamps it with the current time.
func (c *Cache) Put(ctx context.Context, keyword string, results []models.ResultItem) error {
	if results == nil {
		results = []models.ResultItem{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.backend.Store(ctx, keyword, payload, c.clock.Now()); err != nil {
		metrics.CacheWriteErrors.Inc()
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}
