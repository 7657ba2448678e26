// Package jobs runs background work alongside the HTTP server.
package jobs

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"

	"rankwatch/internal/ranking"
)

// Sweeper refreshes every tracked keyword in the system.
type Sweeper interface {
	SweepAll(ctx context.Context) (ranking.SweepResult, error)
}

// ScheduledSweep runs a system-wide sweep on a fixed interval.
type ScheduledSweep struct {
	sweeper  Sweeper
	interval time.Duration
	clock    quartz.Clock
	logger   *logrus.Logger
}

// NewScheduledSweep creates a scheduled sweep.
func NewScheduledSweep(sweeper Sweeper, interval time.Duration, clock quartz.Clock, logger *logrus.Logger) *ScheduledSweep {
	return &ScheduledSweep{
		sweeper:  sweeper,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Start blocks, sweeping once per interval until ctx is done. Sweeps never
// overlap: a tick that arrives while a sweep is running is dropped.
func (s *ScheduledSweep) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval).Info("scheduled sweep started")

	ticker := s.clock.NewTicker(s.interval, "jobs", "sweep")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduled sweep stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ScheduledSweep) runOnce(ctx context.Context) {
	result, err := s.sweeper.SweepAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WithError(err).Error("scheduled sweep failed")
		return
	}
	if len(result.Failed) > 0 {
		s.logger.WithField("failed", result.Failed).Warn("scheduled sweep finished with failures")
	}
}
