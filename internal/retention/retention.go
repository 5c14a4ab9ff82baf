// Package retention runs the nightly purge: at each local midnight it deletes
// messages older than the configured horizon. Store failures back the loop
// off for an hour instead of killing it.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/udpmon/internal/metrics"
	"github.com/eldtechnologies/udpmon/internal/store"
)

// Clock abstracts time.Now so boundary computation is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler periodically deletes messages past the retention horizon.
type Scheduler struct {
	store         store.MessageStore
	retentionDays float64
	clock         Clock
	backoff       time.Duration
	logger        zerolog.Logger
}

// New creates a scheduler purging messages older than retentionDays at each
// local midnight.
func New(st store.MessageStore, retentionDays float64, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:         st,
		retentionDays: retentionDays,
		clock:         systemClock{},
		backoff:       time.Hour,
		logger:        logger.With().Str("component", "retention").Logger(),
	}
}

// NextMidnight returns the first midnight strictly after now, in now's
// location. time.Date normalizes day+1, so month/year rollover and DST
// transitions resolve to the location's actual next 00:00.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// Run executes purge cycles until ctx is cancelled. It never returns a store
// error; failures are logged and retried after the backoff interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Float64("retention_days", s.retentionDays).
		Msg("retention scheduler started")

	for {
		next := NextMidnight(s.clock.Now())
		if !s.sleepUntil(ctx, next) {
			s.logger.Info().Msg("retention scheduler stopped")
			return nil
		}

		deleted, err := s.store.DeleteOlderThan(ctx, s.retentionDays)
		if err != nil {
			metrics.StorageErrors.WithLabelValues("delete").Inc()
			s.logger.Error().Err(err).Msg("purge failed, backing off")
			if !s.sleep(ctx, s.backoff) {
				s.logger.Info().Msg("retention scheduler stopped")
				return nil
			}
			continue
		}

		if deleted > 0 {
			metrics.MessagesPurged.Add(float64(deleted))
			s.logger.Info().
				Int64("deleted", deleted).
				Float64("retention_days", s.retentionDays).
				Msg("purged expired messages")
		} else {
			s.logger.Debug().Msg("no expired messages")
		}
	}
}

// sleepUntil blocks until t or cancellation; false means ctx was cancelled.
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	return s.sleep(ctx, t.Sub(s.clock.Now()))
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
