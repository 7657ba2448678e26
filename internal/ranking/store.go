// Package ranking synchronises tracked item ranks with keyword search snapshots.
//
// One collection per keyword serves every owner tracking that keyword: the
// snapshot is cached and then fanned out to all matching items in a single
// transaction. Owner refreshes run keywords through a bounded worker pool; the
// system-wide sweep runs them one at a time.
package ranking

import (
	"context"

	"github.com/google/uuid"

	"rankwatch/internal/models"
)

// SnapshotCache is the shared keyword snapshot store.
type SnapshotCache interface {
	Get(ctx context.Context, keyword string) ([]models.ResultItem, bool, error)
	Put(ctx context.Context, keyword string, results []models.ResultItem) error
}

// Collector fetches a fresh ranked snapshot for a keyword. An empty result
// means no data was available.
type Collector interface {
	Collect(ctx context.Context, keyword string) []models.ResultItem
}

// KeywordRankStore applies rank updates to every item tracked under a keyword.
type KeywordRankStore interface {
	UpdateKeywordRanks(ctx context.Context, keyword string, plan func([]models.TrackedItem) []models.RankUpdate) (int, error)
}

// OwnerItemStore groups an owner's tracked items by keyword.
type OwnerItemStore interface {
	GroupTrackedItemsByKeyword(ctx context.Context, ownerID string) (map[string][]models.TrackedItem, error)
}

// KeywordLister enumerates every keyword tracked in the system.
type KeywordLister interface {
	ListDistinctKeywords(ctx context.Context) ([]string, error)
}

// ItemRegistry creates and updates individual tracked items.
type ItemRegistry interface {
	CreateTrackedItem(ctx context.Context, item *models.TrackedItem) error
	GetTrackedItem(ctx context.Context, id uuid.UUID, ownerID string) (*models.TrackedItem, error)
	UpdateTrackedItemRank(ctx context.Context, id uuid.UUID, ownerID string, plan func(models.TrackedItem) models.RankUpdate) (*models.TrackedItem, error)
}
