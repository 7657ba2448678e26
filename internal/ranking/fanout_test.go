package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankwatch/internal/models"
)

func TestPlanRankUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lookup := models.IndexByExternalID([]models.ResultItem{
		result(7, "mid1", "Sofa X", "StoreA"),
		result(9, "mid2", "", ""),
	})

	tests := []struct {
		name string
		item models.TrackedItem
		want models.RankUpdate
	}{
		{
			name: "first observation sets first rank",
			item: models.TrackedItem{ExternalItemID: "mid1", FirstRank: "-", PrevRank: "-", CurrentRank: "-"},
			want: models.RankUpdate{FirstRank: "7", PrevRank: "-", CurrentRank: "7", Title: "Sofa X", StoreName: "StoreA", CheckedAt: now},
		},
		{
			name: "empty first rank counts as unset",
			item: models.TrackedItem{ExternalItemID: "mid1", CurrentRank: "12"},
			want: models.RankUpdate{FirstRank: "7", PrevRank: "12", CurrentRank: "7", Title: "Sofa X", StoreName: "StoreA", CheckedAt: now},
		},
		{
			name: "existing first rank is kept",
			item: models.TrackedItem{ExternalItemID: "mid1", FirstRank: "3", PrevRank: "4", CurrentRank: "5"},
			want: models.RankUpdate{FirstRank: "3", PrevRank: "5", CurrentRank: "7", Title: "Sofa X", StoreName: "StoreA", CheckedAt: now},
		},
		{
			name: "out of range first rank is kept",
			item: models.TrackedItem{ExternalItemID: "mid1", FirstRank: models.RankOutOfRange, CurrentRank: models.RankOutOfRange},
			want: models.RankUpdate{FirstRank: models.RankOutOfRange, PrevRank: models.RankOutOfRange, CurrentRank: "7", Title: "Sofa X", StoreName: "StoreA", CheckedAt: now},
		},
		{
			name: "empty snapshot title leaves title alone",
			item: models.TrackedItem{ExternalItemID: "mid2", FirstRank: "9", CurrentRank: "9", Title: "Kept"},
			want: models.RankUpdate{FirstRank: "9", PrevRank: "9", CurrentRank: "9", CheckedAt: now},
		},
		{
			name: "absent item goes out of range",
			item: models.TrackedItem{ExternalItemID: "mid3", FirstRank: "2", PrevRank: "1", CurrentRank: "2"},
			want: models.RankUpdate{FirstRank: "2", PrevRank: "2", CurrentRank: models.RankOutOfRange, CheckedAt: now},
		},
		{
			name: "absent unranked item keeps first rank unset",
			item: models.TrackedItem{ExternalItemID: "mid3", FirstRank: "-", PrevRank: "-", CurrentRank: "-"},
			want: models.RankUpdate{FirstRank: "-", PrevRank: "-", CurrentRank: models.RankOutOfRange, CheckedAt: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.item.ID = uuid.New()
			tt.want.ItemID = tt.item.ID
			assert.Equal(t, tt.want, PlanRankUpdate(tt.item, lookup, now))
		})
	}
}

func TestFanout_Scenarios(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	// Scenario A
	a := h.store.seed(t, "ownerA", "mid1", "sofa")
	n, err := h.fanout.Apply(ctx, "sofa", []models.ResultItem{result(5, "mid1", "Sofa X", "StoreA")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	itemA := h.store.item(t, a)
	assert.Equal(t, "5", itemA.FirstRank)
	assert.Equal(t, "-", itemA.PrevRank)
	assert.Equal(t, "5", itemA.CurrentRank)
	assert.Equal(t, "Sofa X", itemA.Title)
	assert.Equal(t, "StoreA", itemA.StoreName)
	assert.Len(t, h.store.historyOf(a), 1)

	// Scenario B: a second owner shares the keyword.
	b := h.store.seed(t, "ownerB", "mid2", "sofa")
	n, err = h.fanout.Apply(ctx, "sofa", []models.ResultItem{
		result(3, "mid1", "Sofa X", "StoreA"),
		result(10, "mid2", "Sofa Y", "StoreB"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	itemA = h.store.item(t, a)
	assert.Equal(t, "5", itemA.FirstRank)
	assert.Equal(t, "5", itemA.PrevRank)
	assert.Equal(t, "3", itemA.CurrentRank)

	itemB := h.store.item(t, b)
	assert.Equal(t, "10", itemB.FirstRank)
	assert.Equal(t, "10", itemB.CurrentRank)
	assert.Len(t, h.store.historyOf(b), 1)

	// Scenario C: mid1 drops out of the horizon.
	_, err = h.fanout.Apply(ctx, "sofa", []models.ResultItem{result(8, "mid2", "Sofa Y", "StoreB")})
	require.NoError(t, err)

	itemA = h.store.item(t, a)
	assert.Equal(t, models.RankOutOfRange, itemA.CurrentRank)
	assert.Equal(t, "3", itemA.PrevRank)
	assert.Equal(t, "5", itemA.FirstRank)
	history := h.store.historyOf(a)
	require.Len(t, history, 3)
	assert.Equal(t, models.RankOutOfRange, history[2].Rank)
}

func TestFanout_TouchesOnlyKeywordItems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)

	sofa1 := h.store.seed(t, "o1", "mid1", "sofa")
	sofa2 := h.store.seed(t, "o2", "mid1", "sofa")
	sofa3 := h.store.seed(t, "o3", "mid9", "sofa")
	chair := h.store.seed(t, "o1", "mid1", "chair")

	n, err := h.fanout.Apply(ctx, "sofa", []models.ResultItem{result(4, "mid1", "T", "S")})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, id := range []uuid.UUID{sofa1, sofa2, sofa3} {
		assert.Len(t, h.store.historyOf(id), 1)
	}
	assert.Equal(t, "4", h.store.item(t, sofa1).CurrentRank)
	assert.Equal(t, "4", h.store.item(t, sofa2).CurrentRank)
	assert.Equal(t, models.RankOutOfRange, h.store.item(t, sofa3).CurrentRank)

	untouched := h.store.item(t, chair)
	assert.Equal(t, "-", untouched.CurrentRank)
	assert.Empty(t, h.store.historyOf(chair))
}

func TestFanout_RankInvariantsAcrossPasses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	id := h.store.seed(t, "o1", "mid1", "sofa")

	passes := [][]models.ResultItem{
		{result(12, "mid1", "T", "S")},
		{},
		{result(2, "mid1", "T", "S")},
		{result(40, "mid1", "", "")},
		{result(1, "other", "T", "S")},
	}

	for i, snapshot := range passes {
		before := h.store.item(t, id)
		_, err := h.fanout.Apply(ctx, "sofa", snapshot)
		require.NoError(t, err)
		after := h.store.item(t, id)

		assert.Equal(t, before.CurrentRank, after.PrevRank, "pass %d: prev rank must equal the previous current rank", i)
		assert.Equal(t, "12", after.FirstRank, "pass %d: first rank must not change once set", i)
		assert.Len(t, h.store.historyOf(id), i+1)
	}
}

func TestFanout_StoreFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.seed(t, "o1", "mid1", "sofa")
	boom := errors.New("deadlock detected")
	h.store.failKeywords["sofa"] = boom

	n, err := h.fanout.Apply(context.Background(), "sofa", nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}
