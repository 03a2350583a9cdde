// Package memory provides process-local repositories used when no database is configured and in tests.
// Every operation holds the store mutex, which gives the same all-or-nothing behavior as the
// conditional statements used by the Postgres repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/repository"
)

// Store holds all entities behind one lock.
type Store struct {
	mu           sync.RWMutex
	problems     map[string]*domain.Problem
	cards        map[string]*domain.CivicCard
	cardNumbers  map[string]string
	transactions []domain.Transaction
	txByKey      map[string]int
	rewards      map[string]*domain.Reward
	codes        map[string]*domain.RedemptionCode
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		problems:    make(map[string]*domain.Problem),
		cards:       make(map[string]*domain.CivicCard),
		cardNumbers: make(map[string]string),
		txByKey:     make(map[string]int),
		rewards:     make(map[string]*domain.Reward),
		codes:       make(map[string]*domain.RedemptionCode),
	}
}

func (s *Store) Problems() repository.ProblemRepository               { return problemRepo{s} }
func (s *Store) Cards() repository.CivicCardRepository                { return cardRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository       { return transactionRepo{s} }
func (s *Store) Rewards() repository.RewardRepository                 { return rewardRepo{s} }
func (s *Store) RedemptionCodes() repository.RedemptionCodeRepository { return codeRepo{s} }

type problemRepo struct{ s *Store }

func (r problemRepo) Create(_ context.Context, problem *domain.Problem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if problem.ID == "" {
		problem.ID = uuid.NewString()
	}
	if problem.UpdatedAt.IsZero() {
		problem.UpdatedAt = problem.CreatedAt
	}
	r.s.problems[problem.ID] = cloneProblem(problem)
	return nil
}

func (r problemRepo) GetByID(_ context.Context, id string) (*domain.Problem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.problems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneProblem(p), nil
}

func (r problemRepo) List(_ context.Context, filter repository.ProblemFilter) ([]domain.Problem, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var matched []domain.Problem
	for _, p := range r.s.problems {
		if filter.ReporterID != nil && p.ReporterID != *filter.ReporterID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
			continue
		}
		matched = append(matched, *cloneProblem(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r problemRepo) CountByReporter(_ context.Context, reporterID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, p := range r.s.problems {
		if p.ReporterID == reporterID {
			n++
		}
	}
	return n, nil
}

func (r problemRepo) Transition(_ context.Context, id string, from []domain.ProblemStatus, t domain.ProblemTransition) (*domain.Problem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.problems[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !containsStatus(from, p.Status) {
		return nil, repository.ErrStatusConflict
	}

	at := t.At
	p.Status = t.To
	if t.AssignedTo != nil && p.AssignedTo == nil {
		p.AssignedTo = strPtr(*t.AssignedTo)
		p.AssignedAt = &at
	}
	if t.VerifiedBy != nil && p.VerifiedBy == nil {
		p.VerifiedBy = strPtr(*t.VerifiedBy)
		p.VerifiedAt = &at
	}
	if t.VerificationImage != nil && p.VerificationImage == nil {
		p.VerificationImage = strPtr(*t.VerificationImage)
	}
	if t.SubmittedToGovernment && !p.SubmittedToGovernment {
		p.SubmittedToGovernment = true
		p.SubmittedAt = &at
	}
	p.UpdatedAt = at
	return cloneProblem(p), nil
}

func (r problemRepo) AddUpvote(_ context.Context, id, userID string) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.problems[id]
	if !ok {
		return 0, false, repository.ErrNotFound
	}
	if p.HasUpvoted(userID) {
		return p.VotesCount, false, nil
	}
	p.Upvotes = append(p.Upvotes, userID)
	p.VotesCount = len(p.Upvotes)
	p.UpdatedAt = time.Now()
	return p.VotesCount, true, nil
}

type cardRepo struct{ s *Store }

func (r cardRepo) GetOrCreate(_ context.Context, card *domain.CivicCard) (*domain.CivicCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.cards[card.UserID]; ok {
		return cloneCard(existing), nil
	}
	if owner, taken := r.s.cardNumbers[card.CardNumber]; taken && owner != card.UserID {
		return nil, repository.ErrDuplicateCode
	}
	stored := cloneCard(card)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Balance, stored.TotalEarned, stored.TotalSpent = 0, 0, 0
	stored.CreatedAt = card.MemberSince
	stored.UpdatedAt = card.MemberSince
	r.s.cards[card.UserID] = stored
	r.s.cardNumbers[card.CardNumber] = card.UserID
	return cloneCard(stored), nil
}

func (r cardRepo) GetByUserID(_ context.Context, userID string) (*domain.CivicCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	card, ok := r.s.cards[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCard(card), nil
}

func (r cardRepo) ApplyEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.IdempotencyKey != nil {
		if idx, ok := r.s.txByKey[*entry.IdempotencyKey]; ok {
			prior := r.s.transactions[idx]
			card, ok := r.s.cards[prior.UserID]
			if !ok {
				return nil, repository.ErrNotFound
			}
			return &domain.LedgerResult{Card: *cloneCard(card), Transaction: prior, Applied: false}, nil
		}
	}

	card, ok := r.s.cards[entry.UserID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	switch entry.Type {
	case domain.TransactionSpent:
		if card.Balance < entry.Amount {
			return nil, repository.ErrInsufficientFunds
		}
		card.Balance -= entry.Amount
		card.TotalSpent += entry.Amount
	default:
		card.Balance += entry.Amount
		card.TotalEarned += entry.Amount
	}
	at := entry.At
	card.LastUsed = &at
	card.UpdatedAt = at

	txn := domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         entry.UserID,
		Type:           entry.Type,
		Amount:         entry.Amount,
		Description:    entry.Description,
		ReferenceID:    entry.ReferenceID,
		ReferenceKind:  entry.ReferenceKind,
		BalanceAfter:   card.Balance,
		IdempotencyKey: entry.IdempotencyKey,
		CreatedAt:      entry.At,
	}
	r.s.transactions = append(r.s.transactions, txn)
	if entry.IdempotencyKey != nil {
		r.s.txByKey[*entry.IdempotencyKey] = len(r.s.transactions) - 1
	}
	return &domain.LedgerResult{Card: *cloneCard(card), Transaction: txn, Applied: true}, nil
}

func (r cardRepo) AddAchievements(_ context.Context, userID string, badges []domain.Badge) (*domain.CivicCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	card, ok := r.s.cards[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, b := range badges {
		if !card.HasBadge(b) {
			card.Achievements = append(card.Achievements, b)
		}
	}
	return cloneCard(card), nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Transaction, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Transaction
	// Appended in time order; walk backwards for newest first.
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		if r.s.transactions[i].UserID == userID {
			matched = append(matched, r.s.transactions[i])
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func (r transactionRepo) Totals(_ context.Context, userID string) (repository.TransactionTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var totals repository.TransactionTotals
	for _, txn := range r.s.transactions {
		if txn.UserID != userID {
			continue
		}
		totals.Count++
		switch txn.Type {
		case domain.TransactionEarned:
			totals.Earned += txn.Amount
		case domain.TransactionSpent:
			totals.Spent += txn.Amount
		case domain.TransactionRefunded:
			totals.Refunded += txn.Amount
		}
	}
	return totals, nil
}

type rewardRepo struct{ s *Store }

func (r rewardRepo) Create(_ context.Context, reward *domain.Reward) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	r.s.rewards[reward.ID] = cloneReward(reward)
	return nil
}

func (r rewardRepo) GetByID(_ context.Context, id string) (*domain.Reward, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reward, ok := r.s.rewards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneReward(reward), nil
}

func (r rewardRepo) List(_ context.Context, filter repository.RewardFilter) ([]domain.Reward, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Reward
	for _, reward := range r.s.rewards {
		if !reward.Redeemable(filter.AvailableAt) {
			continue
		}
		if filter.Category != nil && reward.Category != *filter.Category {
			continue
		}
		matched = append(matched, *cloneReward(reward))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CoinCost == matched[j].CoinCost {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CoinCost < matched[j].CoinCost
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r rewardRepo) ReserveRedemption(_ context.Context, id string, now time.Time) (*domain.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reward, ok := r.s.rewards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !reward.Redeemable(now) {
		return nil, repository.ErrRewardUnavailable
	}
	reward.CurrentRedemptions++
	reward.UpdatedAt = now
	return cloneReward(reward), nil
}

func (r rewardRepo) ReleaseRedemption(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reward, ok := r.s.rewards[id]
	if !ok {
		return repository.ErrNotFound
	}
	if reward.CurrentRedemptions > 0 {
		reward.CurrentRedemptions--
	}
	return nil
}

type codeRepo struct{ s *Store }

func (r codeRepo) Create(_ context.Context, code *domain.RedemptionCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.codes[code.Code]; taken {
		return repository.ErrDuplicateCode
	}
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	stored := *code
	r.s.codes[code.Code] = &stored
	return nil
}

func (r codeRepo) GetByCode(_ context.Context, code string) (*domain.RedemptionCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rc, ok := r.s.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *rc
	return &out, nil
}

func (r codeRepo) Consume(_ context.Context, code, usedBy string, now time.Time) (*domain.RedemptionCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !rc.Valid(now) {
		return nil, repository.ErrCodeNotActive
	}
	rc.Status = domain.RedemptionCodeUsed
	rc.UsedAt = &now
	rc.UsedBy = strPtr(usedBy)
	out := *rc
	return &out, nil
}

func (r codeRepo) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]domain.RedemptionCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.RedemptionCode
	for _, rc := range r.s.codes {
		if rc.UserID == userID && rc.Valid(now) {
			result = append(result, *rc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r codeRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, rc := range r.s.codes {
		if rc.Status == domain.RedemptionCodeActive && !now.Before(rc.ExpiresAt) {
			rc.Status = domain.RedemptionCodeExpired
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsStatus(statuses []domain.ProblemStatus, s domain.ProblemStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }

func cloneProblem(p *domain.Problem) *domain.Problem {
	out := *p
	out.Upvotes = append([]string(nil), p.Upvotes...)
	return &out
}

func cloneReward(r *domain.Reward) *domain.Reward {
	out := *r
	if r.MaxRedemptions != nil {
		limit := *r.MaxRedemptions
		out.MaxRedemptions = &limit
	}
	if r.ImageURL != nil {
		image := *r.ImageURL
		out.ImageURL = &image
	}
	return &out
}

func cloneCard(c *domain.CivicCard) *domain.CivicCard {
	out := *c
	out.Achievements = append([]domain.Badge(nil), c.Achievements...)
	return &out
}
