package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/service"
)

const jobTimeout = 2 * time.Minute

// AwardDrainer retries queued coin awards.
type AwardDrainer interface {
	DrainRetries(ctx context.Context) (service.DrainResult, error)
}

// CodeExpirer sweeps redemption codes past their expiry.
type CodeExpirer interface {
	ExpireCodes(ctx context.Context) (int64, error)
}

// JobRunner executes background jobs.
type JobRunner struct {
	awards AwardDrainer
	codes  CodeExpirer
	logger *zap.Logger
}

// NewJobRunner creates a new job runner.
func NewJobRunner(awards AwardDrainer, codes CodeExpirer, logger *zap.Logger) *JobRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobRunner{awards: awards, codes: codes, logger: logger}
}

// DrainAwardRetries retries coin awards that failed inline.
func (jr *JobRunner) DrainAwardRetries() {
	jr.runWithRecovery("DrainAwardRetries", func(ctx context.Context) error {
		result, err := jr.awards.DrainRetries(ctx)
		if err != nil {
			return err
		}
		if result != (service.DrainResult{}) {
			jr.logger.Info("award retry pass finished",
				zap.Int("credited", result.Credited),
				zap.Int("requeued", result.Requeued),
				zap.Int("abandoned", result.Abandoned))
		}
		return nil
	})
}

// ExpireRedemptionCodes marks stale codes expired.
func (jr *JobRunner) ExpireRedemptionCodes() {
	jr.runWithRecovery("ExpireRedemptionCodes", func(ctx context.Context) error {
		_, err := jr.codes.ExpireCodes(ctx)
		return err
	})
}

// runWithRecovery runs a job with a timeout, logging failures and recovering panics.
func (jr *JobRunner) runWithRecovery(name string, job func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			jr.logger.Error("job panicked", zap.String("job", name), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := job(ctx); err != nil {
		jr.logger.Error("job failed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	jr.logger.Debug("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}
