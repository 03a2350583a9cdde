package domain

import "time"

// TransactionType classifies balance-affecting events.
type TransactionType string

const (
	TransactionEarned   TransactionType = "earned"
	TransactionSpent    TransactionType = "spent"
	TransactionRefunded TransactionType = "refunded"
)

// ReferenceKind names the entity a transaction refers to.
type ReferenceKind string

const (
	ReferenceProblem ReferenceKind = "problem"
	ReferenceReward  ReferenceKind = "reward"
)

// CivicCard is a user's coin account.
type CivicCard struct {
	ID           string
	UserID       string
	CardNumber   string
	Balance      int64
	TotalEarned  int64
	TotalSpent   int64
	Achievements []Badge
	MemberSince  time.Time
	LastUsed     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasBadge reports whether the card already holds badge.
func (c *CivicCard) HasBadge(badge Badge) bool {
	for _, held := range c.Achievements {
		if held == badge {
			return true
		}
	}
	return false
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID             string
	UserID         string
	Type           TransactionType
	Amount         int64
	Description    string
	ReferenceID    *string
	ReferenceKind  *ReferenceKind
	BalanceAfter   int64
	IdempotencyKey *string
	CreatedAt      time.Time
}

// LedgerEntry is a requested balance mutation. Spent entries only apply when the balance covers Amount.
type LedgerEntry struct {
	UserID         string
	Type           TransactionType
	Amount         int64
	Description    string
	ReferenceID    *string
	ReferenceKind  *ReferenceKind
	IdempotencyKey *string
	At             time.Time
}

// LedgerResult is the outcome of applying a LedgerEntry.
// Applied is false when an entry with the same idempotency key was already recorded.
type LedgerResult struct {
	Card        CivicCard
	Transaction Transaction
	Applied     bool
}
