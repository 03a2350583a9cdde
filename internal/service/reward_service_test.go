package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanecho/civic-service/internal/domain"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

func TestRewardCatalogListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pricey := env.addReward(t, 300, nil)
	cheap := env.addReward(t, 20, nil)
	soldOut := env.addReward(t, 5, intPtr(0))
	movie, err := env.rewards.Create(ctx, ngo, RewardInput{
		Name:       "Cinema ticket",
		CoinCost:   150,
		Category:   "Entertainment",
		Merchant:   "Odeon",
		ValidUntil: env.clock.now.Add(time.Hour),
	})
	require.NoError(t, err)

	all, page, err := env.rewards.List(ctx, RewardListInput{Category: CategoryAll})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{cheap.ID, movie.ID, pricey.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, 3, page.Total)
	for _, r := range all {
		assert.NotEqual(t, soldOut.ID, r.ID)
	}

	food, _, err := env.rewards.List(ctx, RewardListInput{Category: "food"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	env.clock.Advance(2 * time.Hour)
	entertainment, _, err := env.rewards.List(ctx, RewardListInput{Category: "entertainment"})
	require.NoError(t, err)
	assert.Empty(t, entertainment, "expired rewards are hidden")

	_, _, err = env.rewards.List(ctx, RewardListInput{Category: "travel"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	stored, err := env.rewards.Get(ctx, movie.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RewardCategoryEntertainment, stored.Category)
}

func TestCreateRewardValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	valid := RewardInput{
		Name:       "Bike repair",
		CoinCost:   80,
		Category:   "services",
		Merchant:   "Spokes",
		ValidUntil: env.clock.now.Add(24 * time.Hour),
	}

	_, err := env.rewards.Create(ctx, volunteer, valid)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	invalid := valid
	invalid.CoinCost = 0
	invalid.Merchant = " "
	invalid.ValidUntil = env.clock.now
	_, err = env.rewards.Create(ctx, ngo, invalid)
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "coinCost")
	assert.Contains(t, details, "merchant")
	assert.Contains(t, details, "validUntil")

	created, err := env.rewards.Create(ctx, ngo, valid)
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.CurrentRedemptions)

	_, err = env.rewards.Get(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
