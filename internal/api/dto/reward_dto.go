package dto

import (
	"time"

	"github.com/urbanecho/civic-service/internal/domain"
)

// CreateRewardRequest payload.
type CreateRewardRequest struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	CoinCost         int64     `json:"coinCost"`
	Category         string    `json:"category"`
	Merchant         string    `json:"merchant"`
	MerchantLocation string    `json:"merchantLocation"`
	ImageURL         *string   `json:"imageUrl"`
	Terms            string    `json:"termsAndConditions"`
	ValidUntil       time.Time `json:"validUntil"`
	MaxRedemptions   *int      `json:"maxRedemptions"`
}

// RewardResponse represents a catalog entry. A nil AvailableRedemptions means unlimited.
type RewardResponse struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	CoinCost             int64                 `json:"coinCost"`
	Category             domain.RewardCategory `json:"category"`
	Merchant             string                `json:"merchant"`
	MerchantLocation     string                `json:"merchantLocation"`
	ImageURL             *string               `json:"imageUrl"`
	Terms                string                `json:"termsAndConditions"`
	ValidUntil           time.Time             `json:"validUntil"`
	MaxRedemptions       *int                  `json:"maxRedemptions"`
	CurrentRedemptions   int                   `json:"currentRedemptions"`
	AvailableRedemptions *int                  `json:"availableRedemptions"`
	IsActive             bool                  `json:"isActive"`
}

// RedemptionCodeResponse represents an issued code.
type RedemptionCodeResponse struct {
	Code       string                      `json:"code"`
	RewardID   string                      `json:"rewardId"`
	RewardName string                      `json:"rewardName"`
	Merchant   string                      `json:"merchant"`
	CoinCost   int64                       `json:"coinCost"`
	Status     domain.RedemptionCodeStatus `json:"status"`
	ExpiresAt  time.Time                   `json:"expiresAt"`
	CreatedAt  time.Time                   `json:"createdAt"`
}

// RedeemResponse is returned after a successful redemption.
type RedeemResponse struct {
	NewBalance     int64                  `json:"newBalance"`
	RedemptionCode RedemptionCodeResponse `json:"redemptionCode"`
	Reward         RewardResponse         `json:"reward"`
	Instructions   string                 `json:"instructions"`
}

// ValidateCodeRequest payload.
type ValidateCodeRequest struct {
	Code         string  `json:"code"`
	MerchantName *string `json:"merchantName"`
}

// ValidateCodeResponse summarizes a consumed code.
type ValidateCodeResponse struct {
	Code       string    `json:"code"`
	RewardName string    `json:"rewardName"`
	Merchant   string    `json:"merchant"`
	CoinCost   int64     `json:"coinCost"`
	UserID     string    `json:"userId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}
