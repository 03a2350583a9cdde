package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/persistence"
	"github.com/urbanecho/civic-service/internal/repository/memory"
)

var (
	volunteer = domain.Actor{UserID: "user-u", Role: domain.RoleVolunteer}
	neighbour = domain.Actor{UserID: "user-v", Role: domain.RoleVolunteer}
	ngo       = domain.Actor{UserID: "ngo-1", Role: domain.RoleNGO}
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	store       *memory.Store
	clock       *testClock
	dispatcher  events.Dispatcher
	queue       persistence.JobQueue
	problems    *ProblemService
	votes       *VoteService
	ledger      *LedgerService
	rewards     *RewardService
	redemptions *RedemptionService
	awards      *CoinAwardService
}

func defaultConfig() *config.Config {
	return &config.Config{
		Lifecycle: config.LifecycleConfig{
			RequireAssignment:        true,
			RequireVerificationPhoto: true,
			ReportReward:             10,
			ResolveReward:            40,
			Categories:               config.DefaultCategories,
		},
		Rewards: config.RewardsConfig{
			CodeTTLHours:      7 * 24,
			CodeLength:        8,
			CodeIssueAttempts: 5,
			DefaultPageSize:   20,
			MaxPageSize:       100,
		},
		RateLimit: config.RateLimitConfig{ReportsPerDay: 0, KeyPrefix: "test"},
		Scheduler: config.SchedulerConfig{AwardRetryMax: 3, AwardRetryBatch: 10},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := defaultConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	env := &testEnv{
		store:      memory.NewStore(),
		clock:      &testClock{now: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)},
		dispatcher: events.NewInMemoryDispatcher(nil),
		queue:      persistence.NewMemoryQueue(),
	}
	clock := env.clock.Now

	env.ledger = NewLedgerService(LedgerDependencies{
		CardRepo:        env.store.Cards(),
		TransactionRepo: env.store.Transactions(),
		ProblemRepo:     env.store.Problems(),
		DefaultPageSize: cfg.Rewards.DefaultPageSize,
		MaxPageSize:     cfg.Rewards.MaxPageSize,
		Clock:           clock,
	})
	env.problems = NewProblemService(ProblemDependencies{
		ProblemRepo: env.store.Problems(),
		Dispatcher:  env.dispatcher,
		Limiter:     persistence.NewMemoryCounter(clock),
		Lifecycle:   cfg.Lifecycle,
		RateLimit:   cfg.RateLimit,
		Rewards:     cfg.Rewards,
		Clock:       clock,
	})
	env.votes = NewVoteService(env.store.Problems(), env.dispatcher, clock)
	env.rewards = NewRewardService(env.store.Rewards(), cfg.Rewards.DefaultPageSize, cfg.Rewards.MaxPageSize, clock)
	env.redemptions = NewRedemptionService(RedemptionDependencies{
		Ledger:     env.ledger,
		RewardRepo: env.store.Rewards(),
		CodeRepo:   env.store.RedemptionCodes(),
		Dispatcher: env.dispatcher,
		Config:     cfg.Rewards,
		Clock:      clock,
	})
	env.awards = NewCoinAwardService(CoinAwardDependencies{
		Dispatcher: env.dispatcher,
		Ledger:     env.ledger,
		Queue:      env.queue,
		Lifecycle:  cfg.Lifecycle,
		Scheduler:  cfg.Scheduler,
	})
	env.awards.RegisterHandlers()
	return env
}

func (e *testEnv) report(t *testing.T, actor domain.Actor) *domain.Problem {
	t.Helper()
	p, err := e.problems.Report(context.Background(), actor, ReportInput{
		Title:    "Broken streetlight",
		Category: "Electricity",
		Location: "Main St",
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	card, err := e.store.Cards().GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, card.TotalEarned-card.TotalSpent, card.Balance)
	return card.Balance
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Credit(context.Background(), LedgerInput{UserID: userID, Amount: amount, Reason: "seed"})
	require.NoError(t, err)
}

func (e *testEnv) addReward(t *testing.T, cost int64, maxRedemptions *int) *domain.Reward {
	t.Helper()
	reward, err := e.rewards.Create(context.Background(), ngo, RewardInput{
		Name:           "Coffee voucher",
		CoinCost:       cost,
		Category:       "food",
		Merchant:       "Bean There",
		ValidUntil:     e.clock.now.Add(30 * 24 * time.Hour),
		MaxRedemptions: maxRedemptions,
	})
	require.NoError(t, err)
	return reward
}

func intPtr(i int) *int { return &i }
