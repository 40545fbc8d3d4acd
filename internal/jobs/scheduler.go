// Package jobs runs periodic maintenance with robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper forfeits games idle for longer than maxIdle and returns how many it closed.
type Sweeper interface {
	SweepIdle(now time.Time, maxIdle time.Duration) int
}

// Scheduler periodically sweeps abandoned single-player games.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	maxIdle time.Duration
	now     func() time.Time
}

// NewScheduler creates a scheduler. Nothing runs until Start.
func NewScheduler(sweeper Sweeper, maxIdle time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		maxIdle: maxIdle,
		now:     time.Now,
	}
}

// Start registers the sweep under schedule (a cron expression or "@every 1m") and starts the cron.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Info().Str("schedule", schedule).Dur("max_idle", s.maxIdle).Msg("Idle game sweeper started")
	return nil
}

// RunOnce sweeps immediately.
func (s *Scheduler) RunOnce() {
	if n := s.sweeper.SweepIdle(s.now(), s.maxIdle); n > 0 {
		log.Info().Int("closed", n).Msg("Swept idle games")
	}
}

// Stop stops the cron and returns a context done once running sweeps finish.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	log.Info().Msg("Idle game sweeper stopped")
	return ctx
}
