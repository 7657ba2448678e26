package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rankwatch/internal/models"
)

// AppendRankHistory records one rank observation for a tracked item.
func (d *DB) AppendRankHistory(ctx context.Context, itemID uuid.UUID, rank string, checkedAt time.Time) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO rank_history (tracked_item_id, rank, checked_at)
		VALUES ($1, $2, $3)
	`, itemID, rank, checkedAt)
	return err
}

// GetRankHistory returns the most recent limit observations for an item, newest first.
func (d *DB) GetRankHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]models.RankHistoryEntry, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, tracked_item_id, rank, checked_at
		FROM rank_history
		WHERE tracked_item_id = $1
		ORDER BY checked_at DESC, id
		LIMIT $2
	`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.RankHistoryEntry
	for rows.Next() {
		var e models.RankHistoryEntry
		if err := rows.Scan(&e.ID, &e.TrackedItemID, &e.Rank, &e.CheckedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
