package dto

import (
	"time"

	"github.com/urbanecho/civic-service/internal/domain"
)

// CivicCardResponse represents a card with badge metadata.
type CivicCardResponse struct {
	UserID      string             `json:"userId"`
	CardNumber  string             `json:"cardNumber"`
	Balance     int64              `json:"balance"`
	TotalEarned int64              `json:"totalEarned"`
	TotalSpent  int64              `json:"totalSpent"`
	MemberSince time.Time          `json:"memberSince"`
	LastUsed    *time.Time         `json:"lastUsed"`
	Badges      []domain.BadgeInfo `json:"badges"`
	NewBadges   []domain.BadgeInfo `json:"newBadges"`
}

// TransactionResponse represents one ledger entry.
type TransactionResponse struct {
	ID            string                 `json:"id"`
	Type          domain.TransactionType `json:"type"`
	Amount        int64                  `json:"amount"`
	Description   string                 `json:"description"`
	ReferenceID   *string                `json:"referenceId"`
	ReferenceKind *domain.ReferenceKind  `json:"referenceType"`
	BalanceAfter  int64                  `json:"balanceAfter"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// DashboardStatsResponse summarizes a ledger.
type DashboardStatsResponse struct {
	Balance            int64                 `json:"balance"`
	CardNumber         string                `json:"cardNumber"`
	TotalEarned        int64                 `json:"totalEarned"`
	TotalSpent         int64                 `json:"totalSpent"`
	TotalRefunded      int64                 `json:"totalRefunded"`
	TransactionCount   int                   `json:"transactionCount"`
	RecentTransactions []TransactionResponse `json:"recentTransactions"`
}
