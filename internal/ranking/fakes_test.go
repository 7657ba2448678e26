package ranking

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/db"
	"rankwatch/internal/models"
	"rankwatch/internal/rankcache"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memStore is an in-memory tracked item store with the same update semantics
// as the Postgres implementation.
type memStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*models.TrackedItem
	order   []uuid.UUID
	history map[uuid.UUID][]models.RankHistoryEntry

	failKeywords map[string]error
	updateCalls  map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		items:        make(map[uuid.UUID]*models.TrackedItem),
		history:      make(map[uuid.UUID][]models.RankHistoryEntry),
		failKeywords: make(map[string]error),
		updateCalls:  make(map[string]int),
	}
}

func (s *memStore) CreateTrackedItem(_ context.Context, item *models.TrackedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.OwnerID == item.OwnerID && existing.ExternalItemID == item.ExternalItemID && existing.Keyword == item.Keyword {
			return db.ErrAlreadyTracked
		}
	}
	for _, f := range []*string{&item.FirstRank, &item.PrevRank, &item.CurrentRank} {
		if *f == "" {
			*f = models.RankUnset
		}
	}
	item.ID = uuid.New()
	stored := *item
	s.items[item.ID] = &stored
	s.order = append(s.order, item.ID)

	if item.CurrentRank != models.RankUnset && item.LastCheckedAt != nil {
		s.appendHistory(item.ID, item.CurrentRank, *item.LastCheckedAt)
	}
	return nil
}

func (s *memStore) GetTrackedItem(_ context.Context, id uuid.UUID, ownerID string) (*models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, db.ErrTrackedItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *memStore) UpdateTrackedItemRank(_ context.Context, id uuid.UUID, ownerID string, plan func(models.TrackedItem) models.RankUpdate) (*models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, db.ErrTrackedItemNotFound
	}
	s.apply(plan(*item))
	cp := *s.items[id]
	return &cp, nil
}

func (s *memStore) UpdateKeywordRanks(_ context.Context, keyword string, plan func([]models.TrackedItem) []models.RankUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateCalls[keyword]++
	if err := s.failKeywords[keyword]; err != nil {
		return 0, err
	}

	var matched []models.TrackedItem
	for _, id := range s.order {
		if item, ok := s.items[id]; ok && item.Keyword == keyword {
			matched = append(matched, *item)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	updates := plan(matched)
	for _, u := range updates {
		s.apply(u)
	}
	return len(updates), nil
}

func (s *memStore) GroupTrackedItemsByKeyword(_ context.Context, ownerID string) (map[string][]models.TrackedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owned []models.TrackedItem
	for _, id := range s.order {
		if item, ok := s.items[id]; ok && (ownerID == "" || item.OwnerID == ownerID) {
			owned = append(owned, *item)
		}
	}
	_, groups := models.GroupByKeyword(owned)
	return groups, nil
}

func (s *memStore) ListDistinctKeywords(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var keywords []string
	for _, item := range s.items {
		if item.Keyword != "" && !seen[item.Keyword] {
			seen[item.Keyword] = true
			keywords = append(keywords, item.Keyword)
		}
	}
	sort.Strings(keywords)
	return keywords, nil
}

// apply mirrors the UPDATE plus history INSERT issued for each RankUpdate.
func (s *memStore) apply(u models.RankUpdate) {
	item := s.items[u.ItemID]
	item.FirstRank = u.FirstRank
	item.PrevRank = u.PrevRank
	item.CurrentRank = u.CurrentRank
	if u.Title != "" {
		item.Title = u.Title
	}
	if u.StoreName != "" {
		item.StoreName = u.StoreName
	}
	checkedAt := u.CheckedAt
	item.LastCheckedAt = &checkedAt
	s.appendHistory(u.ItemID, u.CurrentRank, u.CheckedAt)
}

func (s *memStore) appendHistory(id uuid.UUID, rank string, at time.Time) {
	s.history[id] = append(s.history[id], models.RankHistoryEntry{
		ID:            uuid.New(),
		TrackedItemID: id,
		Rank:          rank,
		CheckedAt:     at,
	})
}

func (s *memStore) item(t *testing.T, id uuid.UUID) models.TrackedItem {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		t.Fatalf("item %s not found", id)
	}
	return *item
}

func (s *memStore) historyOf(id uuid.UUID) []models.RankHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RankHistoryEntry(nil), s.history[id]...)
}

// seed inserts an unranked item directly.
func (s *memStore) seed(t *testing.T, ownerID, externalID, keyword string) uuid.UUID {
	t.Helper()
	item := &models.TrackedItem{OwnerID: ownerID, ExternalItemID: externalID, Keyword: keyword}
	if err := s.CreateTrackedItem(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item.ID
}

// fakeCollector returns scripted snapshots and counts calls per keyword.
type fakeCollector struct {
	mu        sync.Mutex
	snapshots map[string][]models.ResultItem
	calls     map[string]int
	block     chan struct{}
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		snapshots: make(map[string][]models.ResultItem),
		calls:     make(map[string]int),
	}
}

func (c *fakeCollector) set(keyword string, results ...models.ResultItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[keyword] = results
}

func (c *fakeCollector) Collect(ctx context.Context, keyword string) []models.ResultItem {
	c.mu.Lock()
	c.calls[keyword]++
	results := c.snapshots[keyword]
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil
		}
	}
	return results
}

func (c *fakeCollector) callsFor(keyword string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[keyword]
}

func (c *fakeCollector) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type harness struct {
	store     *memStore
	collector *fakeCollector
	cache     *rankcache.Cache
	clock     *quartz.Mock
	fanout    *FanoutUpdater
	pipeline  *Pipeline
}

func newHarness(t *testing.T, opts ...PipelineOption) *harness {
	t.Helper()
	h := &harness{
		store:     newMemStore(),
		collector: newFakeCollector(),
		clock:     quartz.NewMock(t),
	}
	logger := testLogger()
	h.cache = rankcache.New(rankcache.NewMemoryBackend(), logger, rankcache.WithClock(h.clock))
	h.fanout = NewFanoutUpdater(h.store, h.clock, logger)
	h.pipeline = NewPipeline(h.cache, h.collector, h.fanout, logger, opts...)
	return h
}

func result(rank int, externalID, title, store string) models.ResultItem {
	return models.ResultItem{Rank: rank, ExternalItemID: externalID, Title: title, StoreName: store}
}
