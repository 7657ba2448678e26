package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/metrics"
)

// RefreshResult summarises one owner refresh.
type RefreshResult struct {
	Updated  int
	Keywords int
	Failed   []string
	Elapsed  time.Duration
}

// Orchestrator refreshes every keyword an owner tracks through a bounded pool.
type Orchestrator struct {
	items    OwnerItemStore
	pipeline *Pipeline
	pool     *Pool
	clock    quartz.Clock
	logger   *logrus.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(items OwnerItemStore, pipeline *Pipeline, pool *Pool, clock quartz.Clock, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		items:    items,
		pipeline: pipeline,
		pool:     pool,
		clock:    clock,
		logger:   logger,
	}
}

// RefreshForOwner runs each distinct keyword of the owner exactly once. Failed
// keywords are logged and left out of the updated total.
func (o *Orchestrator) RefreshForOwner(ctx context.Context, ownerID string) (RefreshResult, error) {
	start := o.clock.Now()
	log := o.logger.WithField("owner_id", ownerID)

	groups, err := o.items.GroupTrackedItemsByKeyword(ctx, ownerID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("group tracked items: %w", err)
	}

	keywords := make([]string, 0, len(groups))
	for kw := range groups {
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	sort.Strings(keywords)

	outcomes := make([]KeywordOutcome, len(keywords))
	errs := o.pool.Run(ctx, len(keywords), func(ctx context.Context, i int) error {
		out, err := o.pipeline.RefreshKeyword(ctx, keywords[i])
		outcomes[i] = out
		return err
	})

	result := RefreshResult{Keywords: len(keywords)}
	for i, err := range errs {
		if err != nil {
			metrics.KeywordFailures.WithLabelValues("refresh").Inc()
			log.WithError(err).WithField("keyword", keywords[i]).Error("keyword refresh failed")
			result.Failed = append(result.Failed, keywords[i])
			continue
		}
		result.Updated += outcomes[i].Updated
	}

	result.Elapsed = o.clock.Now().Sub(start)
	metrics.RunDuration.WithLabelValues("refresh").Observe(result.Elapsed.Seconds())
	log.WithFields(logrus.Fields{
		"keywords": result.Keywords,
		"updated":  result.Updated,
		"failed":   len(result.Failed),
		"elapsed":  result.Elapsed,
	}).Info("owner refresh finished")
	return result, nil
}
