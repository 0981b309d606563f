// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	businessflow "github.com/treebio/treebio/business_flow"
)

// ReconcileScheduler periodically compares link click counters with stored click events
type ReconcileScheduler struct {
	flow     businessflow.ReconcileFlow
	interval time.Duration
	logger   zerolog.Logger

	// guards against overlapping runs when one outlasts the interval
	running sync.Mutex
}

func NewReconcileScheduler(flow businessflow.ReconcileFlow, interval time.Duration, logger zerolog.Logger) *ReconcileScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReconcileScheduler{
		flow:     flow,
		interval: interval,
		logger:   logger.With().Str("component", "reconcile_scheduler").Logger(),
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function.
// The stop function blocks until the loop has exited.
func (s *ReconcileScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("reconcile scheduler started")

	return func() {
		cancel()
		<-done
		s.logger.Info().Msg("reconcile scheduler stopped")
	}
}

func (s *ReconcileScheduler) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("previous reconciliation still running; skipping tick")
		return
	}
	defer s.running.Unlock()

	report, err := s.flow.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().Err(err).Msg("click counter reconciliation failed")
		return
	}
	if len(report.Divergent) > report.Repaired {
		s.logger.Warn().
			Int("unresolved", len(report.Divergent)-report.Repaired).
			Msg("click counters remain out of step with click events")
	}
}
