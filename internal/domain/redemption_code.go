package domain

import "time"

// RedemptionCodeStatus enumerates claim token states.
type RedemptionCodeStatus string

const (
	RedemptionCodeActive    RedemptionCodeStatus = "active"
	RedemptionCodeUsed      RedemptionCodeStatus = "used"
	RedemptionCodeExpired   RedemptionCodeStatus = "expired"
	RedemptionCodeCancelled RedemptionCodeStatus = "cancelled"
)

// RedemptionCode binds a user, a reward and the spending transaction.
type RedemptionCode struct {
	ID            string
	Code          string
	UserID        string
	RewardID      string
	TransactionID string
	Status        RedemptionCodeStatus
	ExpiresAt     time.Time
	UsedAt        *time.Time
	UsedBy        *string
	RewardName    string
	Merchant      string
	CoinCost      int64
	CreatedAt     time.Time
}

// Valid reports whether the code can still be consumed at now.
func (c *RedemptionCode) Valid(now time.Time) bool {
	return c.Status == RedemptionCodeActive && now.Before(c.ExpiresAt)
}
