package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// CategoryAll disables the category filter on catalog listings.
const CategoryAll = "all"

// RewardService exposes the reward catalog.
type RewardService struct {
	rewards  repository.RewardRepository
	pageSize int
	maxPage  int
	clock    func() time.Time
}

// RewardInput describes a catalog entry to create.
type RewardInput struct {
	Name             string
	Description      string
	CoinCost         int64
	Category         string
	Merchant         string
	MerchantLocation string
	ImageURL         *string
	Terms            string
	ValidUntil       time.Time
	MaxRedemptions   *int
}

// RewardListInput filters catalog listings.
type RewardListInput struct {
	Category string
	PageRequest
}

// NewRewardService constructs the service.
func NewRewardService(rewards repository.RewardRepository, defaultPageSize, maxPageSize int, clock func() time.Time) *RewardService {
	return &RewardService{rewards: rewards, pageSize: defaultPageSize, maxPage: maxPageSize, clock: nowFunc(clock)}
}

// List returns redeemable rewards, cheapest first.
func (s *RewardService) List(ctx context.Context, input RewardListInput) ([]domain.Reward, Pagination, error) {
	filter := repository.RewardFilter{AvailableAt: s.clock()}
	if category := strings.ToLower(strings.TrimSpace(input.Category)); category != "" && category != CategoryAll {
		c := domain.RewardCategory(category)
		if !c.Valid() {
			return nil, Pagination{}, apperrors.NewValidationError("unknown reward category", map[string]any{"category": input.Category})
		}
		filter.Category = &c
	}

	page, limit, offset := input.normalize(s.pageSize, s.maxPage)
	filter.Limit, filter.Offset = limit, offset

	rewards, total, err := s.rewards.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, apperrors.MapError(err)
	}
	return rewards, newPagination(page, limit, total), nil
}

// Get returns one reward regardless of availability.
func (s *RewardService) Get(ctx context.Context, rewardID string) (*domain.Reward, error) {
	reward, err := s.rewards.GetByID(ctx, rewardID)
	if err != nil {
		return nil, mapRepoError(err, "reward", map[string]any{"reward_id": rewardID})
	}
	return reward, nil
}

// Create adds a reward to the catalog. NGO only.
func (s *RewardService) Create(ctx context.Context, actor domain.Actor, input RewardInput) (*domain.Reward, error) {
	if err := requireNGO(actor, "create rewards"); err != nil {
		return nil, err
	}

	now := s.clock()
	problems := map[string]any{}
	name := strings.TrimSpace(input.Name)
	merchant := strings.TrimSpace(input.Merchant)
	category := domain.RewardCategory(strings.ToLower(strings.TrimSpace(input.Category)))
	if name == "" {
		problems["name"] = "is required"
	}
	if merchant == "" {
		problems["merchant"] = "is required"
	}
	if input.CoinCost < 1 {
		problems["coinCost"] = "must be at least 1"
	}
	if !category.Valid() {
		problems["category"] = "must be one of food, entertainment, shopping, services, other"
	}
	if !input.ValidUntil.After(now) {
		problems["validUntil"] = "must be in the future"
	}
	if input.MaxRedemptions != nil && *input.MaxRedemptions < 0 {
		problems["maxRedemptions"] = "must not be negative"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid reward", problems)
	}

	reward := &domain.Reward{
		ID:               uuid.NewString(),
		Name:             name,
		Description:      strings.TrimSpace(input.Description),
		CoinCost:         input.CoinCost,
		Category:         category,
		Merchant:         merchant,
		MerchantLocation: strings.TrimSpace(input.MerchantLocation),
		ImageURL:         trimmedOrNil(input.ImageURL),
		Terms:            strings.TrimSpace(input.Terms),
		ValidUntil:       input.ValidUntil,
		MaxRedemptions:   input.MaxRedemptions,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.rewards.Create(ctx, reward); err != nil {
		return nil, apperrors.MapError(err)
	}
	return reward, nil
}
