package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rankwatch/internal/models"
)

// trackedItemColumns is the standard column list for tracked item queries.
const trackedItemColumns = `id, owner_id, external_item_id, keyword, title, store_name,
	first_rank, prev_rank, current_rank, last_checked_at, created_at`

// scanTrackedItem scans a row into a TrackedItem struct.
func scanTrackedItem(row pgx.Row) (*models.TrackedItem, error) {
	var item models.TrackedItem
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.ExternalItemID,
		&item.Keyword,
		&item.Title,
		&item.StoreName,
		&item.FirstRank,
		&item.PrevRank,
		&item.CurrentRank,
		&item.LastCheckedAt,
		&item.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTrackedItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// scanTrackedItems scans multiple rows into a slice of TrackedItems.
func scanTrackedItems(rows pgx.Rows) ([]models.TrackedItem, error) {
	defer rows.Close()

	var items []models.TrackedItem
	for rows.Next() {
		item, err := scanTrackedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

// CreateTrackedItem registers a new tracked item. When the item already carries
// an observed rank, the matching history row is written in the same transaction.
func (d *DB) CreateTrackedItem(ctx context.Context, item *models.TrackedItem) error {
	if item.FirstRank == "" {
		item.FirstRank = models.RankUnset
	}
	if item.PrevRank == "" {
		item.PrevRank = models.RankUnset
	}
	if item.CurrentRank == "" {
		item.CurrentRank = models.RankUnset
	}

	return pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO tracked_items (owner_id, external_item_id, keyword, title, store_name,
				first_rank, prev_rank, current_rank, last_checked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at
		`,
			item.OwnerID,
			item.ExternalItemID,
			item.Keyword,
			item.Title,
			item.StoreName,
			item.FirstRank,
			item.PrevRank,
			item.CurrentRank,
			item.LastCheckedAt,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyTracked
			}
			return err
		}

		if item.CurrentRank == models.RankUnset || item.LastCheckedAt == nil {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO rank_history (tracked_item_id, rank, checked_at)
			VALUES ($1, $2, $3)
		`, item.ID, item.CurrentRank, *item.LastCheckedAt)
		return err
	})
}

// GetTrackedItem returns an item by ID if it belongs to the owner.
func (d *DB) GetTrackedItem(ctx context.Context, id uuid.UUID, ownerID string) (*models.TrackedItem, error) {
	query := `SELECT ` + trackedItemColumns + ` FROM tracked_items WHERE id = $1 AND owner_id = $2`
	return scanTrackedItem(d.Pool.QueryRow(ctx, query, id, ownerID))
}

// ListTrackedItemsByOwner returns an owner's items, newest first.
func (d *DB) ListTrackedItemsByOwner(ctx context.Context, ownerID string) ([]models.TrackedItem, error) {
	query := `SELECT ` + trackedItemColumns + ` FROM tracked_items WHERE owner_id = $1 ORDER BY created_at DESC, id`
	rows, err := d.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	return scanTrackedItems(rows)
}

// ListTrackedItemsByKeyword returns every item tracked under keyword, across all owners.
func (d *DB) ListTrackedItemsByKeyword(ctx context.Context, keyword string) ([]models.TrackedItem, error) {
	query := `SELECT ` + trackedItemColumns + ` FROM tracked_items WHERE keyword = $1 ORDER BY created_at, id`
	rows, err := d.Pool.Query(ctx, query, keyword)
	if err != nil {
		return nil, err
	}
	return scanTrackedItems(rows)
}

// ListDistinctKeywords returns every non-empty keyword tracked by anyone.
func (d *DB) ListDistinctKeywords(ctx context.Context) ([]string, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT DISTINCT keyword FROM tracked_items
		WHERE keyword <> ''
		ORDER BY keyword
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// GroupTrackedItemsByKeyword groups an owner's items by keyword.
// An empty ownerID groups every item in the system.
func (d *DB) GroupTrackedItemsByKeyword(ctx context.Context, ownerID string) (map[string][]models.TrackedItem, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = d.Pool.Query(ctx, `SELECT `+trackedItemColumns+` FROM tracked_items ORDER BY keyword, created_at`)
	} else {
		rows, err = d.Pool.Query(ctx, `SELECT `+trackedItemColumns+` FROM tracked_items WHERE owner_id = $1 ORDER BY keyword, created_at`, ownerID)
	}
	if err != nil {
		return nil, err
	}
	items, err := scanTrackedItems(rows)
	if err != nil {
		return nil, err
	}
	_, groups := models.GroupByKeyword(items)
	return groups, nil
}

// DeleteTrackedItem deletes an item owned by ownerID. History rows cascade.
func (d *DB) DeleteTrackedItem(ctx context.Context, id uuid.UUID, ownerID string) error {
	result, err := d.Pool.Exec(ctx, `DELETE FROM tracked_items WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTrackedItemNotFound
	}
	return nil
}

// DeleteTrackedItems deletes the given items owned by ownerID and returns how many were removed.
func (d *DB) DeleteTrackedItems(ctx context.Context, ownerID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := d.Pool.Exec(ctx, `DELETE FROM tracked_items WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// UpdateKeywordRanks locks every item tracked under keyword, asks plan for the
// new rank values and writes the updates plus one history row per item in a
// single transaction. It returns the number of items updated.
func (d *DB) UpdateKeywordRanks(ctx context.Context, keyword string, plan func([]models.TrackedItem) []models.RankUpdate) (int, error) {
	var updated int
	err := pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+trackedItemColumns+` FROM tracked_items WHERE keyword = $1 ORDER BY id FOR UPDATE`, keyword)
		if err != nil {
			return fmt.Errorf("failed to lock items: %w", err)
		}
		items, err := scanTrackedItems(rows)
		if err != nil {
			return fmt.Errorf("failed to scan items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		updates := plan(items)
		if err := applyRankUpdates(ctx, tx, updates); err != nil {
			return err
		}
		updated = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// UpdateTrackedItemRank applies plan to a single owned item inside a transaction
// and returns the item as stored afterwards.
func (d *DB) UpdateTrackedItemRank(ctx context.Context, id uuid.UUID, ownerID string, plan func(models.TrackedItem) models.RankUpdate) (*models.TrackedItem, error) {
	var result *models.TrackedItem
	err := pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		item, err := scanTrackedItem(tx.QueryRow(ctx,
			`SELECT `+trackedItemColumns+` FROM tracked_items WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID))
		if err != nil {
			return err
		}

		if err := applyRankUpdates(ctx, tx, []models.RankUpdate{plan(*item)}); err != nil {
			return err
		}

		result, err = scanTrackedItem(tx.QueryRow(ctx,
			`SELECT `+trackedItemColumns+` FROM tracked_items WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyRankUpdates writes updates and their history rows in one transaction.
func (d *DB) ApplyRankUpdates(ctx context.Context, updates []models.RankUpdate) error {
	return pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		return applyRankUpdates(ctx, tx, updates)
	})
}

// applyRankUpdates queues every item update and its history row on one batch.
func applyRankUpdates(ctx context.Context, tx pgx.Tx, updates []models.RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		checkedAt := u.CheckedAt
		if checkedAt.IsZero() {
			checkedAt = time.Now()
		}
		batch.Queue(`
			UPDATE tracked_items
			SET first_rank = $2, prev_rank = $3, current_rank = $4,
				title = COALESCE(NULLIF($5, ''), title),
				store_name = COALESCE(NULLIF($6, ''), store_name),
				last_checked_at = $7
			WHERE id = $1
		`, u.ItemID, u.FirstRank, u.PrevRank, u.CurrentRank, u.Title, u.StoreName, checkedAt)
		batch.Queue(`
			INSERT INTO rank_history (tracked_item_id, rank, checked_at)
			VALUES ($1, $2, $3)
		`, u.ItemID, u.CurrentRank, checkedAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to apply rank updates: %w", err)
	}
	return nil
}

// CountTracking returns the number of tracked items and distinct keywords.
func (d *DB) CountTracking(ctx context.Context) (items int64, keywords int64, err error) {
	err = d.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT keyword) FROM tracked_items
	`).Scan(&items, &keywords)
	return items, keywords, err
}
