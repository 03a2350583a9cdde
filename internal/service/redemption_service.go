package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	unknownMerchant = "Unknown Merchant"
)

// CoinLedger is the slice of the ledger that redemption needs.
type CoinLedger interface {
	Debit(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error)
	Refund(ctx context.Context, input LedgerInput) (*domain.LedgerResult, error)
}

// RedemptionService turns coins into single-use reward codes.
//
// Redeem runs debit, then capacity reservation, then code issuance. Each step is an atomic
// single-row change; a failure after the debit is compensated with a refund (and a capacity
// release once reserved) so a user is never charged without holding a code.
type RedemptionService struct {
	ledger     CoinLedger
	rewards    repository.RewardRepository
	codes      repository.RedemptionCodeRepository
	dispatcher events.Dispatcher
	cfg        config.RewardsConfig
	logger     *zap.Logger
	clock      func() time.Time
	generate   func(length int) (string, error)
}

// RedemptionDependencies bundles collaborators.
type RedemptionDependencies struct {
	Ledger     CoinLedger
	RewardRepo repository.RewardRepository
	CodeRepo   repository.RedemptionCodeRepository
	Dispatcher events.Dispatcher
	Config     config.RewardsConfig
	Logger     *zap.Logger
	Clock      func() time.Time
	// CodeGenerator overrides random code generation.
	CodeGenerator func(length int) (string, error)
}

// Redemption is the outcome of a successful redeem.
type Redemption struct {
	NewBalance   int64
	Code         domain.RedemptionCode
	Reward       domain.Reward
	Instructions string
}

// CodeValidation is the outcome of a merchant validating a code.
type CodeValidation struct {
	Code       domain.RedemptionCode
	RewardName string
	Merchant   string
	CoinCost   int64
	UserID     string
	RedeemedAt time.Time
}

// NewRedemptionService constructs the service.
func NewRedemptionService(deps RedemptionDependencies) *RedemptionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 8
	}
	if cfg.CodeIssueAttempts <= 0 {
		cfg.CodeIssueAttempts = 5
	}
	generate := deps.CodeGenerator
	if generate == nil {
		generate = generateCode
	}
	return &RedemptionService{
		ledger:     deps.Ledger,
		rewards:    deps.RewardRepo,
		codes:      deps.CodeRepo,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     logger,
		clock:      nowFunc(deps.Clock),
		generate:   generate,
	}
}

// Redeem spends the reward's cost and issues an active code.
func (s *RedemptionService) Redeem(ctx context.Context, actor domain.Actor, rewardID string) (*Redemption, error) {
	if actor.UserID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	now := s.clock()
	reward, err := s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, mapRepoError(err, "reward", map[string]any{"reward_id": rewardID})
	}
	if !reward.Redeemable(now) {
		return nil, unavailable(reward)
	}

	debit, err := s.ledger.Debit(ctx, LedgerInput{
		UserID:        actor.UserID,
		Amount:        reward.CoinCost,
		Reason:        "Redeemed " + reward.Name,
		ReferenceID:   strPtr(reward.ID),
		ReferenceKind: referenceKind(domain.ReferenceReward),
	})
	if err != nil {
		return nil, err
	}

	reserved, err := s.rewards.ReserveRedemption(ctx, reward.ID, now)
	if err != nil {
		if compErr := s.compensate(ctx, actor.UserID, reward, false, err); compErr != nil {
			return nil, compErr
		}
		if errors.Is(err, repository.ErrRewardUnavailable) {
			return nil, unavailable(reward)
		}
		return nil, mapRepoError(err, "reward", map[string]any{"reward_id": rewardID})
	}

	code, err := s.issueCode(ctx, actor.UserID, reserved, debit.Transaction.ID, now)
	if err != nil {
		if compErr := s.compensate(ctx, actor.UserID, reward, true, err); compErr != nil {
			return nil, compErr
		}
		return nil, apperrors.NewInternalError(fmt.Errorf("issue redemption code: %w", err))
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventRewardRedeemed,
		SubjectID: reward.ID,
		Actor:     eventActor(actor),
		Payload:   events.RewardRedeemedPayload{RewardID: reward.ID, Code: code.Code, CoinCost: reward.CoinCost},
	})

	return &Redemption{
		NewBalance:   debit.Card.Balance,
		Code:         *code,
		Reward:       *reserved,
		Instructions: fmt.Sprintf("Show this code at %s to redeem your reward", reward.Merchant),
	}, nil
}

// ValidateCode consumes a code on behalf of a merchant. A second call for the same code fails.
func (s *RedemptionService) ValidateCode(ctx context.Context, code string, merchantName *string) (*CodeValidation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperrors.NewValidationError("redemption code is required", nil)
	}

	now := s.clock()
	rc, err := s.codes.GetByCode(ctx, code)
	if err != nil {
		return nil, mapRepoError(err, "redemption code", map[string]any{"code": code})
	}
	if !rc.Valid(now) {
		return nil, apperrors.NewExpired("redemption code has expired or is no longer valid")
	}

	merchant := trimmedOrNil(merchantName)
	if merchant != nil && *merchant != rc.Merchant {
		return nil, apperrors.NewMerchantMismatch(*merchant)
	}
	usedBy := unknownMerchant
	if merchant != nil {
		usedBy = *merchant
	}

	consumed, err := s.codes.Consume(ctx, code, usedBy, now)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotActive) {
			return nil, apperrors.NewExpired("redemption code has expired or is no longer valid")
		}
		return nil, mapRepoError(err, "redemption code", map[string]any{"code": code})
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventCodeValidated,
		SubjectID: consumed.ID,
		Payload:   events.CodeValidatedPayload{RewardID: consumed.RewardID, UserID: consumed.UserID, Merchant: usedBy},
	})

	return &CodeValidation{
		Code:       *consumed,
		RewardName: consumed.RewardName,
		Merchant:   consumed.Merchant,
		CoinCost:   consumed.CoinCost,
		UserID:     consumed.UserID,
		RedeemedAt: now,
	}, nil
}

// ListActiveCodes returns the user's claimable codes, newest first.
func (s *RedemptionService) ListActiveCodes(ctx context.Context, userID string) ([]domain.RedemptionCode, error) {
	codes, err := s.codes.ListActiveByUser(ctx, userID, s.clock())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return codes, nil
}

// ExpireCodes marks active codes past their expiry as expired.
func (s *RedemptionService) ExpireCodes(ctx context.Context) (int64, error) {
	n, err := s.codes.ExpireDue(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired redemption codes", zap.Int64("count", n))
	}
	return n, nil
}

func (s *RedemptionService) issueCode(ctx context.Context, userID string, reward *domain.Reward, transactionID string, now time.Time) (*domain.RedemptionCode, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.CodeIssueAttempts; attempt++ {
		value, err := s.generate(s.cfg.CodeLength)
		if err != nil {
			return nil, err
		}
		rc := &domain.RedemptionCode{
			ID:            uuid.NewString(),
			Code:          value,
			UserID:        userID,
			RewardID:      reward.ID,
			TransactionID: transactionID,
			Status:        domain.RedemptionCodeActive,
			ExpiresAt:     now.Add(s.cfg.CodeTTL()),
			RewardName:    reward.Name,
			Merchant:      reward.Merchant,
			CoinCost:      reward.CoinCost,
			CreatedAt:     now,
		}
		err = s.codes.Create(ctx, rc)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no unique code after %d attempts: %w", s.cfg.CodeIssueAttempts, lastErr)
}

// compensate undoes the debit (and the reservation when taken) after a failed redemption step.
// It returns a non-nil error only when compensation itself fails.
func (s *RedemptionService) compensate(ctx context.Context, userID string, reward *domain.Reward, reserved bool, cause error) error {
	var failures []error
	if reserved {
		if err := s.rewards.ReleaseRedemption(ctx, reward.ID); err != nil {
			failures = append(failures, fmt.Errorf("release capacity: %w", err))
		}
	}
	if _, err := s.ledger.Refund(ctx, LedgerInput{
		UserID:        userID,
		Amount:        reward.CoinCost,
		Reason:        "Refund for " + reward.Name,
		ReferenceID:   strPtr(reward.ID),
		ReferenceKind: referenceKind(domain.ReferenceReward),
	}); err != nil {
		failures = append(failures, fmt.Errorf("refund: %w", err))
	}
	if len(failures) == 0 {
		s.logger.Warn("redemption rolled back",
			zap.String("user_id", userID),
			zap.String("reward_id", reward.ID),
			zap.Error(cause))
		return nil
	}

	joined := errors.Join(failures...)
	s.logger.Error("redemption compensation failed; manual reconciliation required",
		zap.String("user_id", userID),
		zap.String("reward_id", reward.ID),
		zap.Int64("amount", reward.CoinCost),
		zap.NamedError("cause", cause),
		zap.Error(joined))
	return apperrors.NewInternalError(joined)
}

func unavailable(reward *domain.Reward) error {
	return apperrors.NewUnavailable("reward is no longer available", map[string]any{
		"reward_id":             reward.ID,
		"active":                reward.IsActive,
		"valid_until":           reward.ValidUntil,
		"current_redemptions":   reward.CurrentRedemptions,
		"available_redemptions": reward.AvailableRedemptions(),
	})
}

func generateCode(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
