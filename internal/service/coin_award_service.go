package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/persistence"
)

// CoinCreditor is the slice of the ledger used for awards.
type CoinCreditor interface {
	Credit(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error)
}

// AwardJob is a pending coin award, serialized onto the retry queue.
type AwardJob struct {
	Event     events.EventType `json:"event"`
	ProblemID string           `json:"problem_id"`
	UserID    string           `json:"user_id"`
	Amount    int64            `json:"amount"`
	Reason    string           `json:"reason"`
	Attempts  int              `json:"attempts"`
}

// IdempotencyKey ties the award to its triggering event so retries never double-credit.
func (j AwardJob) IdempotencyKey() string {
	return string(j.Event) + ":" + j.ProblemID
}

// DrainResult summarizes one retry pass.
type DrainResult struct {
	Credited  int
	Requeued  int
	Abandoned int
}

// CoinAwardService credits reporters when their problems are reported and resolved.
// Awards are best effort: failures go to the retry queue and never reach the lifecycle caller.
type CoinAwardService struct {
	dispatcher  events.Dispatcher
	ledger      CoinCreditor
	queue       persistence.JobQueue
	lifecycle   config.LifecycleConfig
	maxAttempts int
	batch       int
	logger      *zap.Logger
}

// CoinAwardDependencies bundles collaborators.
type CoinAwardDependencies struct {
	Dispatcher events.Dispatcher
	Ledger     CoinCreditor
	Queue      persistence.JobQueue
	Lifecycle  config.LifecycleConfig
	Scheduler  config.SchedulerConfig
	Logger     *zap.Logger
}

// NewCoinAwardService constructs the service.
func NewCoinAwardService(deps CoinAwardDependencies) *CoinAwardService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := deps.Scheduler.AwardRetryMax
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	batch := deps.Scheduler.AwardRetryBatch
	if batch <= 0 {
		batch = 100
	}
	return &CoinAwardService{
		dispatcher:  deps.Dispatcher,
		ledger:      deps.Ledger,
		queue:       deps.Queue,
		lifecycle:   deps.Lifecycle,
		maxAttempts: maxAttempts,
		batch:       batch,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (s *CoinAwardService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventProblemReported, s.handleProblemReported)
	s.dispatcher.Subscribe(events.EventProblemResolved, s.handleProblemResolved)
}

func (s *CoinAwardService) handleProblemReported(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ProblemReportedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return s.award(ctx, AwardJob{
		Event:     event.Type,
		ProblemID: event.SubjectID,
		UserID:    payload.ReporterID,
		Amount:    s.lifecycle.ReportReward,
		Reason:    "Reported problem: " + payload.Title,
	})
}

func (s *CoinAwardService) handleProblemResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ProblemResolvedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return s.award(ctx, AwardJob{
		Event:     event.Type,
		ProblemID: event.SubjectID,
		UserID:    payload.ReporterID,
		Amount:    s.lifecycle.ResolveReward,
		Reason:    "Problem resolved: " + payload.Title,
	})
}

func (s *CoinAwardService) award(ctx context.Context, job AwardJob) error {
	if job.Amount <= 0 {
		return nil
	}
	err := s.credit(ctx, job)
	if err == nil {
		return nil
	}
	s.logger.Warn("coin award failed; queued for retry",
		zap.String("event", string(job.Event)),
		zap.String("problem_id", job.ProblemID),
		zap.String("user_id", job.UserID),
		zap.Int64("amount", job.Amount),
		zap.Error(err))
	job.Attempts = 1
	return s.enqueue(ctx, job)
}

func (s *CoinAwardService) credit(ctx context.Context, job AwardJob) error {
	key := job.IdempotencyKey()
	_, err := s.ledger.Credit(ctx, LedgerInput{
		UserID:         job.UserID,
		Amount:         job.Amount,
		Reason:         job.Reason,
		ReferenceID:    strPtr(job.ProblemID),
		ReferenceKind:  referenceKind(domain.ReferenceProblem),
		IdempotencyKey: &key,
	})
	return err
}

func (s *CoinAwardService) enqueue(ctx context.Context, job AwardJob) error {
	if s.queue == nil {
		return errors.New("no award retry queue configured")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.queue.Push(ctx, payload); err != nil {
		return fmt.Errorf("enqueue award retry: %w", err)
	}
	return nil
}

// DrainRetries retries the awards queued before the call, at most one batch.
// Jobs requeued during the pass wait for the next one.
func (s *CoinAwardService) DrainRetries(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	if s.queue == nil {
		return result, nil
	}
	pending, err := s.queue.Len(ctx)
	if err != nil {
		return result, err
	}
	if pending > int64(s.batch) {
		pending = int64(s.batch)
	}

	for i := int64(0); i < pending; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		payload, ok, err := s.queue.Pop(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}

		var job AwardJob
		if err := json.Unmarshal(payload, &job); err != nil {
			s.logger.Error("dropping malformed award job", zap.ByteString("payload", payload), zap.Error(err))
			result.Abandoned++
			continue
		}

		if err := s.credit(ctx, job); err == nil {
			result.Credited++
			continue
		} else if job.Attempts+1 >= s.maxAttempts {
			s.logger.Error("coin award abandoned after retries",
				zap.String("event", string(job.Event)),
				zap.String("problem_id", job.ProblemID),
				zap.String("user_id", job.UserID),
				zap.Int64("amount", job.Amount),
				zap.Int("attempts", job.Attempts+1),
				zap.Error(err))
			result.Abandoned++
			continue
		}

		job.Attempts++
		if err := s.enqueue(ctx, job); err != nil {
			return result, err
		}
		result.Requeued++
	}
	return result, nil
}
