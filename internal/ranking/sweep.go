package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/metrics"
	"rankwatch/internal/pacing"
)

// DefaultSweepDelay is the pause after each keyword the sweep had to collect.
const DefaultSweepDelay = 500 * time.Millisecond

// SweepResult summarises one system-wide sweep.
type SweepResult struct {
	Updated  int
	Keywords int
	Failed   []string
	Elapsed  time.Duration
}

// Sweeper refreshes every tracked keyword in the system, one at a time.
type Sweeper struct {
	keywords KeywordLister
	pipeline *Pipeline
	delay    time.Duration
	clock    quartz.Clock
	logger   *logrus.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(keywords KeywordLister, pipeline *Pipeline, delay time.Duration, clock quartz.Clock, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		keywords: keywords,
		pipeline: pipeline,
		delay:    delay,
		clock:    clock,
		logger:   logger,
	}
}

// SweepAll refreshes every distinct keyword sequentially. A failing keyword is
// logged and skipped; only cancellation of ctx ends the sweep early.
func (s *Sweeper) SweepAll(ctx context.Context) (SweepResult, error) {
	start := s.clock.Now()

	keywords, err := s.keywords.ListDistinctKeywords(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list keywords: %w", err)
	}
	s.logger.WithField("keywords", len(keywords)).Info("sweep started")

	result := SweepResult{Keywords: len(keywords)}
	finish := func() SweepResult {
		result.Elapsed = s.clock.Now().Sub(start)
		metrics.RunDuration.WithLabelValues("sweep").Observe(result.Elapsed.Seconds())
		return result
	}

	for i, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		log := s.logger.WithFields(logrus.Fields{
			"keyword":  kw,
			"progress": fmt.Sprintf("%d/%d", i+1, len(keywords)),
		})

		out, err := s.pipeline.RefreshKeyword(ctx, kw)
		if err != nil {
			metrics.KeywordFailures.WithLabelValues("sweep").Inc()
			log.WithError(err).Error("keyword sweep failed")
			result.Failed = append(result.Failed, kw)
		} else {
			result.Updated += out.Updated
			log.WithFields(logrus.Fields{
				"updated":   out.Updated,
				"collected": out.Collected,
			}).Info("keyword swept")
		}

		if out.Collected && i < len(keywords)-1 {
			if err := pacing.Wait(ctx, s.clock, s.delay, "sweep", "keyword"); err != nil {
				return finish(), err
			}
		}
	}

	finish()
	s.logger.WithFields(logrus.Fields{
		"updated": result.Updated,
		"failed":  len(result.Failed),
		"elapsed": result.Elapsed,
	}).Info("sweep finished")
	return result, nil
}
