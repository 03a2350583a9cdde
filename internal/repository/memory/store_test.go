package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/repository"
)

func TestAddUpvoteConcurrentSameUser(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	problem := &domain.Problem{ID: "p1", Status: domain.ProblemStatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.Problems().Create(ctx, problem))

	var wg sync.WaitGroup
	added := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Problems().AddUpvote(ctx, "p1", "u1")
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

	stored, err := store.Problems().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VotesCount)
	assert.Equal(t, len(stored.Upvotes), stored.VotesCount)
}

func TestTransitionKeepsSetOnceFields(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Problems().Create(ctx, &domain.Problem{ID: "p1", Status: domain.ProblemStatusPending, CreatedAt: now}))

	staff := "staff-1"
	_, err := store.Problems().Transition(ctx, "p1", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now, AssignedTo: &staff})
	require.NoError(t, err)

	_, err = store.Problems().Transition(ctx, "p1", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now, AssignedTo: &staff})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	_, err = store.Problems().Transition(ctx, "missing", []domain.ProblemStatus{domain.ProblemStatusPending},
		domain.ProblemTransition{To: domain.ProblemStatusAssigned, At: now})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestApplyEntry(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()
	_, err := store.Cards().GetOrCreate(ctx, &domain.CivicCard{UserID: "u1", CardNumber: "CC1", MemberSince: now})
	require.NoError(t, err)

	key := "problem_reported:p1"
	credit := domain.LedgerEntry{UserID: "u1", Type: domain.TransactionEarned, Amount: 10, IdempotencyKey: &key, At: now}
	first, err := store.Cards().ApplyEntry(ctx, credit)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, int64(10), first.Transaction.BalanceAfter)

	replayed, err := store.Cards().ApplyEntry(ctx, credit)
	require.NoError(t, err)
	assert.False(t, replayed.Applied)
	assert.Equal(t, int64(10), replayed.Card.Balance)

	_, err = store.Cards().ApplyEntry(ctx, domain.LedgerEntry{UserID: "u1", Type: domain.TransactionSpent, Amount: 11, At: now})
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	card, err := store.Cards().GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), card.Balance)
	assert.Equal(t, card.TotalEarned-card.TotalSpent, card.Balance)

	txns, total, err := store.Transactions().ListByUser(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, txns, 1)
}

func TestCardNumberCollision(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, err := store.Cards().GetOrCreate(ctx, &domain.CivicCard{UserID: "u1", CardNumber: "CC1"})
	require.NoError(t, err)
	_, err = store.Cards().GetOrCreate(ctx, &domain.CivicCard{UserID: "u2", CardNumber: "CC1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateCode)
}

func TestRewardCapIsNotSharedWithCaller(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now()
	limit := 1
	reward := &domain.Reward{ID: "r1", Name: "Coffee", CoinCost: 5, IsActive: true,
		ValidUntil: now.Add(time.Hour), MaxRedemptions: &limit}
	require.NoError(t, store.Rewards().Create(ctx, reward))

	limit = 100
	_, err := store.Rewards().ReserveRedemption(ctx, "r1", now)
	require.NoError(t, err)
	_, err = store.Rewards().ReserveRedemption(ctx, "r1", now)
	assert.ErrorIs(t, err, repository.ErrRewardUnavailable, "cap stays at the value stored on create")

	fetched, err := store.Rewards().GetByID(ctx, "r1")
	require.NoError(t, err)
	*fetched.MaxRedemptions = 50
	again, err := store.Rewards().GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, *again.MaxRedemptions)
}
