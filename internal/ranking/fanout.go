package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/metrics"
	"rankwatch/internal/models"
)

// FanoutUpdater applies one keyword snapshot to every item tracked under that
// keyword, across all owners.
type FanoutUpdater struct {
	store  KeywordRankStore
	clock  quartz.Clock
	logger *logrus.Logger
}

// NewFanoutUpdater creates a FanoutUpdater.
func NewFanoutUpdater(store KeywordRankStore, clock quartz.Clock, logger *logrus.Logger) *FanoutUpdater {
	return &FanoutUpdater{store: store, clock: clock, logger: logger}
}

// Apply updates every item tracked under keyword from snapshot and returns how
// many were processed. All updates and history rows commit together; a failed
// pass is not retried.
func (f *FanoutUpdater) Apply(ctx context.Context, keyword string, snapshot []models.ResultItem) (int, error) {
	lookup := models.IndexByExternalID(snapshot)
	now := f.clock.Now()

	n, err := f.store.UpdateKeywordRanks(ctx, keyword, func(items []models.TrackedItem) []models.RankUpdate {
		updates := make([]models.RankUpdate, 0, len(items))
		for _, item := range items {
			updates = append(updates, PlanRankUpdate(item, lookup, now))
		}
		return updates
	})
	if err != nil {
		return 0, fmt.Errorf("fan out %q: %w", keyword, err)
	}

	metrics.FanoutItems.Add(float64(n))
	f.logger.WithFields(logrus.Fields{
		"keyword":  keyword,
		"snapshot": len(snapshot),
		"updated":  n,
	}).Debug("fan-out applied")
	return n, nil
}

// PlanRankUpdate computes the new rank fields of item for a snapshot lookup.
// The previous current rank always shifts into PrevRank. Items missing from
// the snapshot become RankOutOfRange; a first rank already recorded is kept.
func PlanRankUpdate(item models.TrackedItem, lookup map[string]models.ResultItem, now time.Time) models.RankUpdate {
	u := models.RankUpdate{
		ItemID:    item.ID,
		FirstRank: item.FirstRank,
		PrevRank:  item.CurrentRank,
		CheckedAt: now,
	}
	if u.PrevRank == "" {
		u.PrevRank = models.RankUnset
	}
	if u.FirstRank == "" {
		u.FirstRank = models.RankUnset
	}

	found, ok := lookup[item.ExternalItemID]
	if !ok {
		u.CurrentRank = models.RankOutOfRange
		return u
	}

	u.CurrentRank = models.FormatRank(found.Rank)
	if !item.HasFirstRank() {
		u.FirstRank = u.CurrentRank
	}
	u.Title = found.Title
	u.StoreName = found.StoreName
	return u
}
