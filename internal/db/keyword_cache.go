package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetKeywordCache returns the raw cached snapshot for keyword and when it was cached.
func (d *DB) GetKeywordCache(ctx context.Context, keyword string) ([]byte, time.Time, error) {
	var (
		payload  []byte
		cachedAt time.Time
	)
	err := d.Pool.QueryRow(ctx, `
		SELECT results, cached_at FROM keyword_cache WHERE keyword = $1
	`, keyword).Scan(&payload, &cachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, ErrCacheEntryNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return payload, cachedAt, nil
}

// UpsertKeywordCache stores the snapshot for keyword, replacing any previous one.
func (d *DB) UpsertKeywordCache(ctx context.Context, keyword string, payload []byte, cachedAt time.Time) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO keyword_cache (keyword, results, cached_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (keyword) DO UPDATE
		SET results = EXCLUDED.results, cached_at = EXCLUDED.cached_at
	`, keyword, string(payload), cachedAt)
	return err
}
