package worker

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/config"
)

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *JobRunner
	logger *zap.Logger
}

// NewScheduler registers the background jobs on a UTC, seconds-precision cron.
func NewScheduler(cfg config.SchedulerConfig, jobs *JobRunner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		jobs:   jobs,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(cfg.AwardRetrySpec, jobs.DrainAwardRetries); err != nil {
		return nil, fmt.Errorf("register DrainAwardRetries: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.CodeExpirySpec, jobs.ExpireRedemptionCodes); err != nil {
		return nil, fmt.Errorf("register ExpireRedemptionCodes: %w", err)
	}
	logger.Info("cron jobs registered", zap.Int("count", len(s.cron.Entries())))
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
