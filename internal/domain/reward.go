package domain

import "time"

// RewardCategory groups catalog items.
type RewardCategory string

const (
	RewardCategoryFood          RewardCategory = "food"
	RewardCategoryEntertainment RewardCategory = "entertainment"
	RewardCategoryShopping      RewardCategory = "shopping"
	RewardCategoryServices      RewardCategory = "services"
	RewardCategoryOther         RewardCategory = "other"
)

// Valid reports whether c is a known category.
func (c RewardCategory) Valid() bool {
	switch c {
	case RewardCategoryFood, RewardCategoryEntertainment, RewardCategoryShopping, RewardCategoryServices, RewardCategoryOther:
		return true
	}
	return false
}

// Reward is a redeemable catalog item.
type Reward struct {
	ID                 string
	Name               string
	Description        string
	CoinCost           int64
	Category           RewardCategory
	Merchant           string
	MerchantLocation   string
	ImageURL           *string
	Terms              string
	ValidUntil         time.Time
	MaxRedemptions     *int
	CurrentRedemptions int
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AvailableRedemptions returns the remaining capacity, or nil when unlimited.
func (r *Reward) AvailableRedemptions() *int {
	if r.MaxRedemptions == nil {
		return nil
	}
	remaining := *r.MaxRedemptions - r.CurrentRedemptions
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Redeemable reports whether the reward can be claimed at now.
func (r *Reward) Redeemable(now time.Time) bool {
	if !r.IsActive || !now.Before(r.ValidUntil) {
		return false
	}
	if r.MaxRedemptions != nil && r.CurrentRedemptions >= *r.MaxRedemptions {
		return false
	}
	return true
}
