package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanecho/civic-service/internal/domain"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

func TestGetOrCreateOpensEmptyCard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	card, err := env.ledger.GetOrCreate(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Zero(t, card.Balance)
	assert.Regexp(t, regexp.MustCompile(`^CC\d{11}$`), card.CardNumber)
	assert.Equal(t, env.clock.now, card.MemberSince)

	again, err := env.ledger.GetOrCreate(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, card.CardNumber, again.CardNumber)

	_, err = env.ledger.GetOrCreate(ctx, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLedgerBalanceArithmetic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	credit, err := env.ledger.Credit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 120, Reason: "bonus"})
	require.NoError(t, err)
	assert.True(t, credit.Applied)
	assert.Equal(t, int64(120), credit.Transaction.BalanceAfter)

	debit, err := env.ledger.Debit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 70, Reason: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), debit.Card.Balance)
	assert.Equal(t, int64(70), debit.Card.TotalSpent)

	refund, err := env.ledger.Refund(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 70, Reason: "refund"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRefunded, refund.Transaction.Type)
	assert.Equal(t, int64(120), refund.Card.Balance)
	assert.Equal(t, int64(190), refund.Card.TotalEarned)
	assert.Equal(t, int64(120), env.balance(t, volunteer.UserID))
}

func TestDebitInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, volunteer.UserID, 30)

	_, err := env.ledger.Debit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 31, Reason: "too much"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientFunds))
	assert.Equal(t, int64(30), apperrors.ToDomainError(err).Details["balance"])
	assert.Equal(t, int64(30), env.balance(t, volunteer.UserID))

	stats, err := env.ledger.DashboardStats(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TransactionCount)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t)
	for _, amount := range []int64{0, -5} {
		_, err := env.ledger.Credit(context.Background(), LedgerInput{UserID: volunteer.UserID, Amount: amount})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	}
}

func TestCreditIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := "problem_resolved:p-1"

	first, err := env.ledger.Credit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 40, IdempotencyKey: &key})
	require.NoError(t, err)
	second, err := env.ledger.Credit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 40, IdempotencyKey: &key})
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(40), env.balance(t, volunteer.UserID))
}

func TestGetCardAwardsBadgesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.report(t, volunteer)
	env.fund(t, volunteer.UserID, 45)

	view, err := env.ledger.GetCard(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Badge{domain.BadgeBronzeLevel, domain.BadgeFirstReport}, view.Card.Achievements)
	require.Len(t, view.NewBadges, 2)
	assert.Equal(t, "Bronze Level", view.NewBadges[0].Name)

	view, err = env.ledger.GetCard(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Empty(t, view.NewBadges)
	assert.Len(t, view.Badges, 2)

	env.clock.Advance(31 * 24 * time.Hour)
	view, err = env.ledger.GetCard(ctx, volunteer.UserID)
	require.NoError(t, err)
	require.Len(t, view.NewBadges, 1)
	assert.Equal(t, domain.BadgeEarlyAdopter, view.NewBadges[0].Badge)
}

func TestListTransactionsPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env.fund(t, volunteer.UserID, int64(i+1))
	}

	txns, page, err := env.ledger.ListTransactions(ctx, volunteer.UserID, PageRequest{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(3), txns[0].Amount)
	assert.Equal(t, int64(2), txns[1].Amount)
	assert.Equal(t, Pagination{Current: 2, Pages: 3, Total: 5, Limit: 2}, page)

	_, page, err = env.ledger.ListTransactions(ctx, volunteer.UserID, PageRequest{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty, err := env.ledger.DashboardStats(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Zero(t, empty.Card.Balance)
	assert.Zero(t, empty.TransactionCount)
	assert.Empty(t, empty.Recent)

	for i := 0; i < 7; i++ {
		env.fund(t, volunteer.UserID, 10)
	}
	_, err = env.ledger.Debit(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 25})
	require.NoError(t, err)
	_, err = env.ledger.Refund(ctx, LedgerInput{UserID: volunteer.UserID, Amount: 5})
	require.NoError(t, err)

	stats, err := env.ledger.DashboardStats(ctx, volunteer.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.Card.Balance)
	assert.Equal(t, int64(75), stats.TotalEarned)
	assert.Equal(t, stats.Card.TotalEarned, stats.TotalEarned)
	assert.Equal(t, stats.Card.Balance, stats.TotalEarned-stats.TotalSpent)
	assert.Equal(t, int64(25), stats.TotalSpent)
	assert.Equal(t, int64(5), stats.TotalRefunded)
	assert.Equal(t, 9, stats.TransactionCount)
	require.Len(t, stats.Recent, 5)
	assert.Equal(t, domain.TransactionRefunded, stats.Recent[0].Type)
}
