package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Rank marker constants
const (
	RankUnset      = "-"
	RankOutOfRange = "out of range"
)

// TrackedItem is one owner's interest in one external listing under one keyword.
type TrackedItem struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        string     `json:"owner_id"`
	ExternalItemID string     `json:"external_item_id"`
	Keyword        string     `json:"keyword"`
	Title          string     `json:"title"`
	StoreName      string     `json:"store_name"`
	FirstRank      string     `json:"first_rank"` // "-" until the first observation
	PrevRank       string     `json:"prev_rank"`
	CurrentRank    string     `json:"current_rank"`
	LastCheckedAt  *time.Time `json:"last_checked_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasFirstRank returns true once the item has recorded its first observation.
func (t *TrackedItem) HasFirstRank() bool {
	return t.FirstRank != "" && t.FirstRank != RankUnset
}

// FormatRank renders a snapshot position as a stored rank value.
func FormatRank(rank int) string {
	return strconv.Itoa(rank)
}

// IsRanked reports whether a stored rank value is a numeric position.
func IsRanked(rank string) bool {
	n, err := strconv.Atoi(rank)
	return err == nil && n > 0
}

// RankUpdate is the result of applying a snapshot to one tracked item.
// Empty Title or StoreName leave the stored values untouched.
type RankUpdate struct {
	ItemID      uuid.UUID
	FirstRank   string
	PrevRank    string
	CurrentRank string
	Title       string
	StoreName   string
	CheckedAt   time.Time
}

// GroupByKeyword groups items by keyword, returning keywords in first-seen order.
func GroupByKeyword(items []TrackedItem) ([]string, map[string][]TrackedItem) {
	var keywords []string
	groups := make(map[string][]TrackedItem)
	for _, item := range items {
		if item.Keyword == "" {
			continue
		}
		if _, ok := groups[item.Keyword]; !ok {
			keywords = append(keywords, item.Keyword)
		}
		groups[item.Keyword] = append(groups[item.Keyword], item)
	}
	return keywords, groups
}
