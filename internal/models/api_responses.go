package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshResponse summarises an owner-triggered refresh.
type RefreshResponse struct {
	Updated   int      `json:"updated"`
	Keywords  int      `json:"keywords"`
	Failed    []string `json:"failed,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

// CheckResponse contains the result of a single-item rank check.
type CheckResponse struct {
	ItemID    uuid.UUID  `json:"item_id"`
	Rank      string     `json:"rank"`
	FirstRank string     `json:"first_rank"`
	Title     string     `json:"title"`
	StoreName string     `json:"store_name"`
	CheckedAt *time.Time `json:"checked_at"`
}

// BulkDeleteResponse reports how many items were removed.
type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}
