package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crou-platform/be-validations/internal/metrics"
	"github.com/crou-platform/be-validations/internal/platform/logger"
)

// ExpirySweeper periodically expires instances whose validation deadline
// passed. Reads see overdue instances immediately through the read-time
// deadline check; the sweeper is what eventually moves them to the expired
// state and returns their business records to draft.
type ExpirySweeper struct {
	validation *ValidationService
	schedule   string
	batch      int
	cron       *cron.Cron
	log        *logger.Logger
}

// NewExpirySweeper creates a sweeper with a standard 5-field cron schedule.
func NewExpirySweeper(validation *ValidationService, schedule string, batch int, log *logger.Logger) *ExpirySweeper {
	if batch <= 0 {
		batch = 100
	}
	return &ExpirySweeper{
		validation: validation,
		schedule:   schedule,
		batch:      batch,
		log:        log,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *ExpirySweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Int("batch", s.batch).Msg("Expiry sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Expiry sweeper stopped")
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	expired, err := s.validation.ExpireOverdue(ctx, s.batch)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	if expired > 0 {
		s.log.Info().Int("expired", expired).Dur("took", time.Since(start)).Msg("Expiry sweep completed")
	}
}
