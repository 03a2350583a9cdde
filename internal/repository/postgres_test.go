package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/persistence"
	"github.com/urbanecho/civic-service/internal/repository"
)

// setupPool runs the migrations into a throwaway schema. Requires DATABASE_URL.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("civic_test_%d", time.Now().UnixNano())

	cfg, err := pgxpool.ParseConfig(databaseURL)
	require.NoError(t, err)
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	})

	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))
	return pool
}

func newCard(t *testing.T, repo repository.CivicCardRepository, userID string) {
	t.Helper()
	_, err := repo.GetOrCreate(context.Background(), &domain.CivicCard{
		ID:          "card-" + userID,
		UserID:      userID,
		CardNumber:  "CC" + userID,
		MemberSince: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestPostgresProblemTransitionsAndVotes(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	repo := repository.NewProblemRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Create(ctx, &domain.Problem{
		ID: "p-1", ReporterID: "u-1", Title: "Pothole", Category: "Roads", Location: "Elm",
		Status: domain.ProblemStatusPending, Upvotes: []string{}, CreatedAt: now, UpdatedAt: now,
	}))

	staff := "staff-1"
	assigned, err := repo.Transition(ctx, "p-1", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now, AssignedTo: &staff})
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemStatusAssigned, assigned.Status)

	other := "staff-2"
	_, err = repo.Transition(ctx, "p-1", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now, AssignedTo: &other})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	_, err = repo.Transition(ctx, "missing", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var wg sync.WaitGroup
	added := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.AddUpvote(ctx, "p-1", "voter")
			assert.NoError(t, err)
			added <- ok
		}()
	}
	wg.Wait()
	close(added)
	wins := 0
	for ok := range added {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	stored, err := repo.GetByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VotesCount)
	assert.Equal(t, []string{"voter"}, stored.Upvotes)
	assert.Equal(t, staff, *stored.AssignedTo)
}

func TestPostgresLedgerEntries(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	cards := repository.NewCivicCardRepository(pool)
	txns := repository.NewTransactionRepository(pool)
	newCard(t, cards, "u-1")
	now := time.Now().UTC()

	key := "problem_reported:p-1"
	first, err := cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "u-1", Type: domain.TransactionEarned, Amount: 10, IdempotencyKey: &key, At: now})
	require.NoError(t, err)
	assert.True(t, first.Applied)
	replayed, err := cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "u-1", Type: domain.TransactionEarned, Amount: 10, IdempotencyKey: &key, At: now})
	require.NoError(t, err)
	assert.False(t, replayed.Applied)
	assert.Equal(t, first.Transaction.ID, replayed.Transaction.ID)

	_, err = cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "u-1", Type: domain.TransactionSpent, Amount: 11, At: now})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	spent, err := cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "u-1", Type: domain.TransactionSpent, Amount: 4, At: now})
	require.NoError(t, err)
	assert.Equal(t, int64(6), spent.Card.Balance)
	assert.Equal(t, int64(6), spent.Transaction.BalanceAfter)

	totals, err := txns.Totals(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, repository.TransactionTotals{Earned: 10, Spent: 4, Count: 2}, totals)

	_, err = cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "nobody", Type: domain.TransactionEarned, Amount: 1, At: now})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresRewardCapacityAndCodes(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	cards := repository.NewCivicCardRepository(pool)
	rewards := repository.NewRewardRepository(pool)
	codes := repository.NewRedemptionCodeRepository(pool)
	now := time.Now().UTC()
	newCard(t, cards, "u-1")

	limit := 1
	require.NoError(t, rewards.Create(ctx, &domain.Reward{
		ID: "r-1", Name: "Coffee", CoinCost: 5, Category: domain.RewardCategoryFood, Merchant: "Bean There",
		ValidUntil: now.Add(time.Hour), MaxRedemptions: &limit, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	reserved, err := rewards.ReserveRedemption(ctx, "r-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, reserved.CurrentRedemptions)
	_, err = rewards.ReserveRedemption(ctx, "r-1", now)
	assert.ErrorIs(t, err, repository.ErrRewardUnavailable)

	debit, err := cards.ApplyEntry(ctx, domain.LedgerEntry{UserID: "u-1", Type: domain.TransactionEarned, Amount: 5, At: now})
	require.NoError(t, err)
	code := &domain.RedemptionCode{
		ID: "c-1", Code: "ABCD1234", UserID: "u-1", RewardID: "r-1", TransactionID: debit.Transaction.ID,
		Status: domain.RedemptionCodeActive, ExpiresAt: now.Add(time.Hour), RewardName: "Coffee",
		Merchant: "Bean There", CoinCost: 5, CreatedAt: now,
	}
	require.NoError(t, codes.Create(ctx, code))
	dup := *code
	dup.ID = "c-2"
	assert.ErrorIs(t, codes.Create(ctx, &dup), repository.ErrDuplicateCode)

	used, err := codes.Consume(ctx, "ABCD1234", "Bean There", now)
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionCodeUsed, used.Status)
	_, err = codes.Consume(ctx, "ABCD1234", "Bean There", now)
	assert.ErrorIs(t, err, repository.ErrCodeNotActive)

	require.NoError(t, rewards.ReleaseRedemption(ctx, "r-1"))
	stored, err := rewards.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentRedemptions)

	n, err := codes.ExpireDue(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "used codes are never expired")
}
