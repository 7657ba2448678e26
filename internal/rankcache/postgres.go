package rankcache

import (
	"context"
	"errors"
	"time"

	"rankwatch/internal/db"
)

// PostgresBackend stores snapshots in the keyword_cache table.
type PostgresBackend struct {
	db *db.DB
}

// NewPostgresBackend creates a backend over the application database.
func NewPostgresBackend(database *db.DB) *PostgresBackend {
	return &PostgresBackend{db: database}
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context, keyword string) ([]byte, time.Time, error) {
	payload, cachedAt, err := b.db.GetKeywordCache(ctx, keyword)
	if errors.Is(err, db.ErrCacheEntryNotFound) {
		return nil, time.Time{}, ErrNotFound
	}
	return payload, cachedAt, err
}

// Store implements Backend.
func (b *PostgresBackend) Store(ctx context.Context, keyword string, payload []byte, cachedAt time.Time) error {
	return b.db.UpsertKeywordCache(ctx, keyword, payload, cachedAt)
}
