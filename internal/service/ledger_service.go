package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

const (
	cardNumberAttempts = 5
	recentTransactions = 5
)

// LedgerService is the only writer of civic card balances.
type LedgerService struct {
	cards        repository.CivicCardRepository
	transactions repository.TransactionRepository
	problems     repository.ProblemRepository
	pageSize     int
	maxPage      int
	logger       *zap.Logger
	clock        func() time.Time
}

// LedgerDependencies bundles repositories for the ledger.
type LedgerDependencies struct {
	CardRepo        repository.CivicCardRepository
	TransactionRepo repository.TransactionRepository
	ProblemRepo     repository.ProblemRepository
	DefaultPageSize int
	MaxPageSize     int
	Logger          *zap.Logger
	Clock           func() time.Time
}

// LedgerInput describes a single balance change.
type LedgerInput struct {
	UserID         string
	Amount         int64
	Reason         string
	ReferenceID    *string
	ReferenceKind  *domain.ReferenceKind
	IdempotencyKey *string
}

// CardView is a civic card with display metadata for its badges.
type CardView struct {
	Card      domain.CivicCard
	Badges    []domain.BadgeInfo
	NewBadges []domain.BadgeInfo
}

// DashboardStats summarizes a user's ledger.
type DashboardStats struct {
	Card             domain.CivicCard
	TotalEarned      int64
	TotalSpent       int64
	TotalRefunded    int64
	TransactionCount int
	Recent           []domain.Transaction
}

// NewLedgerService constructs the service.
func NewLedgerService(deps LedgerDependencies) *LedgerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		cards:        deps.CardRepo,
		transactions: deps.TransactionRepo,
		problems:     deps.ProblemRepo,
		pageSize:     deps.DefaultPageSize,
		maxPage:      deps.MaxPageSize,
		logger:       logger,
		clock:        nowFunc(deps.Clock),
	}
}

// GetOrCreate returns the user's card, opening an empty one on first access.
func (s *LedgerService) GetOrCreate(ctx context.Context, userID string) (*domain.CivicCard, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("userId is required", nil)
	}
	if card, err := s.cards.GetByUserID(ctx, userID); err == nil {
		return card, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	now := s.clock()
	for attempt := 0; attempt < cardNumberAttempts; attempt++ {
		card, err := s.cards.GetOrCreate(ctx, &domain.CivicCard{
			ID:          uuid.NewString(),
			UserID:      userID,
			CardNumber:  generateCardNumber(now),
			MemberSince: now,
		})
		if err == nil {
			return card, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, apperrors.MapError(err)
		}
	}
	return nil, apperrors.NewInternalError(fmt.Errorf("could not allocate a unique card number for %s", userID))
}

// Credit adds earned coins. A repeated idempotency key returns the original result.
func (s *LedgerService) Credit(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.TransactionEarned, input)
}

// Refund returns coins after a failed redemption. Refunds count toward totalEarned.
func (s *LedgerService) Refund(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error) {
	return s.apply(ctx, domain.TransactionRefunded, input)
}

// Debit spends coins, failing without side effects when the balance is short.
func (s *LedgerService) Debit(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error) {
	result, err := s.apply(ctx, domain.TransactionSpent, input)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, repository.ErrInsufficientFunds) {
		return nil, err
	}
	var balance int64
	if card, getErr := s.cards.GetByUserID(ctx, input.UserID); getErr == nil {
		balance = card.Balance
	}
	return nil, apperrors.NewInsufficientFunds(input.Amount, balance)
}

func (s *LedgerService) apply(ctx context.Context, txType domain.TransactionType, input LedgerInput) (*domain.LedgerResult, error) {
	if input.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be positive", map[string]any{"amount": input.Amount})
	}
	if _, err := s.GetOrCreate(ctx, input.UserID); err != nil {
		return nil, err
	}

	result, err := s.cards.ApplyEntry(ctx, domain.LedgerEntry{
		UserID:         input.UserID,
		Type:           txType,
		Amount:         input.Amount,
		Description:    input.Reason,
		ReferenceID:    input.ReferenceID,
		ReferenceKind:  input.ReferenceKind,
		IdempotencyKey: input.IdempotencyKey,
		At:             s.clock(),
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrInsufficientFunds):
		return nil, err
	default:
		return nil, mapRepoError(err, "civic card", map[string]any{"user_id": input.UserID})
	}

	if !result.Applied {
		s.logger.Info("ledger entry already applied",
			zap.String("user_id", input.UserID),
			zap.String("type", string(txType)),
			zap.Stringp("idempotency_key", input.IdempotencyKey))
	}
	return result, nil
}

// GetCard returns the card, storing any badges it newly qualifies for.
func (s *LedgerService) GetCard(ctx context.Context, userID string) (*CardView, error) {
	card, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	reported := 0
	if s.problems != nil {
		if reported, err = s.problems.CountByReporter(ctx, userID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	earned := domain.NewBadges(card, reported, s.clock())
	if len(earned) > 0 {
		updated, err := s.cards.AddAchievements(ctx, userID, earned)
		if err != nil {
			return nil, mapRepoError(err, "civic card", map[string]any{"user_id": userID})
		}
		card = updated
	}

	return &CardView{
		Card:      *card,
		Badges:    badgeInfos(card.Achievements),
		NewBadges: badgeInfos(earned),
	}, nil
}

// ListTransactions pages through the user's history, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, req PageRequest) ([]domain.Transaction, Pagination, error) {
	page, limit, offset := req.normalize(s.pageSize, s.maxPage)
	txns, total, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, Pagination{}, apperrors.MapError(err)
	}
	return txns, newPagination(page, limit, total), nil
}

// DashboardStats summarizes the ledger. Users without a card get a zero card.
func (s *LedgerService) DashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	stats := &DashboardStats{Card: domain.CivicCard{UserID: userID}}

	card, err := s.cards.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		stats.Card = *card
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, apperrors.MapError(err)
	}

	totals, err := s.transactions.Totals(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	// Refunds count as earned, matching the card totals.
	stats.TotalEarned = totals.Earned + totals.Refunded
	stats.TotalSpent = totals.Spent
	stats.TotalRefunded = totals.Refunded
	stats.TransactionCount = totals.Count

	recent, _, err := s.transactions.ListByUser(ctx, userID, recentTransactions, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats.Recent = recent
	return stats, nil
}

// generateCardNumber returns CC, the last 8 digits of the unix millis, and 3 random digits.
func generateCardNumber(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 8 {
		millis = millis[len(millis)-8:]
	}
	return fmt.Sprintf("CC%s%03d", millis, rand.Intn(1000))
}

func badgeInfos(badges []domain.Badge) []domain.BadgeInfo {
	out := make([]domain.BadgeInfo, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Info())
	}
	return out
}

func referenceKind(kind domain.ReferenceKind) *domain.ReferenceKind {
	return &kind
}
