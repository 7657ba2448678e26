package ranking

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/models"
)

// Tracker registers tracked items and checks them individually.
type Tracker struct {
	items    ItemRegistry
	pipeline *Pipeline
	clock    quartz.Clock
	logger   *logrus.Logger
}

// NewTracker creates a Tracker.
func NewTracker(items ItemRegistry, pipeline *Pipeline, clock quartz.Clock, logger *logrus.Logger) *Tracker {
	return &Tracker{
		items:    items,
		pipeline: pipeline,
		clock:    clock,
		logger:   logger,
	}
}

// Register creates a tracked item with its current rank already populated.
// A freshly collected snapshot is fanned out to the keyword's existing items
// before the new item is inserted.
func (t *Tracker) Register(ctx context.Context, ownerID, externalID, keyword string) (*models.TrackedItem, error) {
	results, collected := t.pipeline.Snapshot(ctx, keyword)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if collected {
		if _, err := t.pipeline.fanOut(ctx, keyword, results); err != nil {
			t.logger.WithError(err).WithField("keyword", keyword).Warn("fan-out during registration failed")
		}
	}

	// No data with fan-out skipping on is an outage, not a position; leave the
	// ranks unset so the first real observation still becomes the first rank.
	if len(results) == 0 && t.pipeline.skipEmptyFanout {
		t.logger.WithField("keyword", keyword).Info("empty snapshot, registering without a rank")
		return t.RegisterQuick(ctx, ownerID, externalID, keyword)
	}

	now := t.clock.Now()
	item := &models.TrackedItem{
		OwnerID:        ownerID,
		ExternalItemID: externalID,
		Keyword:        keyword,
		FirstRank:      models.RankOutOfRange,
		PrevRank:       models.RankUnset,
		CurrentRank:    models.RankOutOfRange,
		LastCheckedAt:  &now,
	}
	if found, ok := models.IndexByExternalID(results)[externalID]; ok {
		rank := models.FormatRank(found.Rank)
		item.FirstRank = rank
		item.CurrentRank = rank
		item.Title = found.Title
		item.StoreName = found.StoreName
	}

	if err := t.items.CreateTrackedItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create tracked item: %w", err)
	}
	return item, nil
}

// RegisterQuick creates a tracked item without looking it up. Its ranks stay
// unset until the next refresh or sweep.
func (t *Tracker) RegisterQuick(ctx context.Context, ownerID, externalID, keyword string) (*models.TrackedItem, error) {
	item := &models.TrackedItem{
		OwnerID:        ownerID,
		ExternalItemID: externalID,
		Keyword:        keyword,
		FirstRank:      models.RankUnset,
		PrevRank:       models.RankUnset,
		CurrentRank:    models.RankUnset,
	}
	if err := t.items.CreateTrackedItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create tracked item: %w", err)
	}
	return item, nil
}

// Check refreshes the rank of one owned item and returns it as stored.
func (t *Tracker) Check(ctx context.Context, ownerID string, id uuid.UUID) (*models.TrackedItem, error) {
	item, err := t.items.GetTrackedItem(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	results, collected := t.pipeline.Snapshot(ctx, item.Keyword)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(results) == 0 && t.pipeline.skipEmptyFanout {
		return item, nil
	}

	// A fresh snapshot goes to every item of the keyword, this one included.
	if collected {
		_, err := t.pipeline.fanout.Apply(ctx, item.Keyword, results)
		if err == nil {
			return t.items.GetTrackedItem(ctx, id, ownerID)
		}
		t.logger.WithError(err).WithField("keyword", item.Keyword).Warn("fan-out during check failed, updating item only")
	}

	lookup := models.IndexByExternalID(results)
	now := t.clock.Now()
	return t.items.UpdateTrackedItemRank(ctx, id, ownerID, func(current models.TrackedItem) models.RankUpdate {
		return PlanRankUpdate(current, lookup, now)
	})
}
