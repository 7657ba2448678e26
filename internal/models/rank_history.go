package models

import (
	"time"

	"github.com/google/uuid"
)

// RankHistoryEntry is one append-only rank observation for a tracked item.
type RankHistoryEntry struct {
	ID            uuid.UUID `json:"id"`
	TrackedItemID uuid.UUID `json:"tracked_item_id"`
	Rank          string    `json:"rank"`
	CheckedAt     time.Time `json:"checked_at"`
}
