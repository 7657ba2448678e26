package rankcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"
)

const redisKeyPrefix = "rankcache:"

// redisEntry is the value stored under each keyword key.
type redisEntry struct {
	CachedAt time.Time       `json:"cached_at"`
	Results  json.RawMessage `json:"results"`
}

// StorageBackend stores snapshots in any fiber.Storage, normally Redis.
// Entries expire natively after ttl so stale keys do not accumulate.
type StorageBackend struct {
	storage fiber.Storage
	ttl     time.Duration
}

// NewStorageBackend wraps an existing fiber.Storage.
func NewStorageBackend(storage fiber.Storage, ttl time.Duration) *StorageBackend {
	return &StorageBackend{storage: storage, ttl: ttl}
}

// NewRedisStorage connects a Redis storage from a redis:// URL.
func NewRedisStorage(url string) *redis.Storage {
	return redis.New(redis.Config{
		URL:   url,
		Reset: false,
	})
}

// Load implements Backend.
func (b *StorageBackend) Load(_ context.Context, keyword string) ([]byte, time.Time, error) {
	raw, err := b.storage.Get(redisKeyPrefix + keyword)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(raw) == 0 {
		return nil, time.Time{}, ErrNotFound
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry.Results, entry.CachedAt, nil
}

// Store implements Backend.
func (b *StorageBackend) Store(_ context.Context, keyword string, payload []byte, cachedAt time.Time) error {
	raw, err := json.Marshal(redisEntry{CachedAt: cachedAt, Results: payload})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return b.storage.Set(redisKeyPrefix+keyword, raw, b.ttl)
}
