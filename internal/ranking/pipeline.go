package ranking

import (
	"context"

	"github.com/sirupsen/logrus"

	"rankwatch/internal/models"
)

// KeywordOutcome describes one keyword unit of work.
type KeywordOutcome struct {
	Keyword   string
	Updated   int
	Collected bool // the snapshot came from the search API rather than the cache
	Results   int
}

// Pipeline is the per-keyword unit: cache read, collection on miss, cache
// write, then fan-out.
type Pipeline struct {
	cache           SnapshotCache
	collector       Collector
	fanout          *FanoutUpdater
	logger          *logrus.Logger
	skipEmptyFanout bool
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithSkipEmptyFanout skips fan-out when the snapshot is empty instead of
// marking every tracked item out of range.
func WithSkipEmptyFanout(skip bool) PipelineOption {
	return func(p *Pipeline) { p.skipEmptyFanout = skip }
}

// NewPipeline creates a Pipeline.
func NewPipeline(cache SnapshotCache, collector Collector, fanout *FanoutUpdater, logger *logrus.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cache:     cache,
		collector: collector,
		fanout:    fanout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the cached snapshot for keyword, collecting and caching a
// fresh one on a miss. collected reports whether the search API was called.
func (p *Pipeline) Snapshot(ctx context.Context, keyword string) (results []models.ResultItem, collected bool) {
	log := p.logger.WithField("keyword", keyword)

	results, ok, err := p.cache.Get(ctx, keyword)
	if err != nil {
		log.WithError(err).Warn("snapshot cache read failed, collecting")
	}
	if ok {
		return results, false
	}

	results = p.collector.Collect(ctx, keyword)
	if len(results) == 0 {
		// Nothing to share; the next run retries the search.
		return results, true
	}
	if err := p.cache.Put(ctx, keyword, results); err != nil {
		log.WithError(err).Warn("snapshot cache write failed, fanning out anyway")
	}
	return results, true
}

// RefreshKeyword runs the full unit for keyword.
func (p *Pipeline) RefreshKeyword(ctx context.Context, keyword string) (KeywordOutcome, error) {
	results, collected := p.Snapshot(ctx, keyword)
	out := KeywordOutcome{Keyword: keyword, Collected: collected, Results: len(results)}

	// A cancelled collection looks like an empty one; do not demote items for it.
	if err := ctx.Err(); err != nil {
		return out, err
	}

	n, err := p.fanOut(ctx, keyword, results)
	if err != nil {
		return out, err
	}
	out.Updated = n
	return out, nil
}

func (p *Pipeline) fanOut(ctx context.Context, keyword string, results []models.ResultItem) (int, error) {
	if len(results) == 0 && p.skipEmptyFanout {
		p.logger.WithField("keyword", keyword).Info("empty snapshot, skipping fan-out")
		return 0, nil
	}
	return p.fanout.Apply(ctx, keyword, results)
}
