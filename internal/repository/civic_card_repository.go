package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanecho/civic-service/internal/domain"
)

// CivicCardRepository owns card balances and the transaction rows paired with them.
type CivicCardRepository interface {
	// GetOrCreate inserts card when the user has none and returns the stored card either way.
	// A card number collision with another user returns ErrDuplicateCode.
	GetOrCreate(ctx context.Context, card *domain.CivicCard) (*domain.CivicCard, error)
	GetByUserID(ctx context.Context, userID string) (*domain.CivicCard, error)
	// ApplyEntry mutates the balance and appends the transaction in one unit.
	// Spent entries fail with ErrInsufficientFunds when the balance does not cover them.
	ApplyEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerResult, error)
	AddAchievements(ctx context.Context, userID string, badges []domain.Badge) (*domain.CivicCard, error)
}

const cardColumns = `id, user_id, card_number, balance, total_earned, total_spent, achievements,
               member_since, last_used, created_at, updated_at`

type civicCardRepository struct {
	pool *pgxpool.Pool
}

// NewCivicCardRepository returns a Postgres-backed implementation.
func NewCivicCardRepository(pool *pgxpool.Pool) CivicCardRepository {
	return &civicCardRepository{pool: pool}
}

func (r *civicCardRepository) GetOrCreate(ctx context.Context, card *domain.CivicCard) (*domain.CivicCard, error) {
	const insert = `
        INSERT INTO civic_cards (id, user_id, card_number, member_since, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$4,$4)
        ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, card.ID, card.UserID, card.CardNumber, card.MemberSince); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return r.GetByUserID(ctx, card.UserID)
}

func (r *civicCardRepository) GetByUserID(ctx context.Context, userID string) (*domain.CivicCard, error) {
	card, err := scanCard(r.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM civic_cards WHERE user_id=$1`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

func (r *civicCardRepository) ApplyEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if entry.IdempotencyKey != nil {
		existing, err := r.replay(ctx, tx, *entry.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	var query string
	switch entry.Type {
	case domain.TransactionSpent:
		query = `UPDATE civic_cards SET balance=balance-$2, total_spent=total_spent+$2, last_used=$3, updated_at=$3
            WHERE user_id=$1 AND balance >= $2 RETURNING ` + cardColumns
	default:
		query = `UPDATE civic_cards SET balance=balance+$2, total_earned=total_earned+$2, last_used=$3, updated_at=$3
            WHERE user_id=$1 RETURNING ` + cardColumns
	}

	card, err := scanCard(tx.QueryRow(ctx, query, entry.UserID, entry.Amount, entry.At))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if entry.Type != domain.TransactionSpent {
			return nil, ErrNotFound
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM civic_cards WHERE user_id=$1)`, entry.UserID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrInsufficientFunds
	}

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
	const insert = `
        INSERT INTO transactions (id, user_id, type, amount, description, reference_id, reference_kind, balance_after, idempotency_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	if _, err := tx.Exec(ctx, insert,
		txn.ID,
		txn.UserID,
		string(txn.Type),
		txn.Amount,
		txn.Description,
		txn.ReferenceID,
		referenceKindArg(txn.ReferenceKind),
		txn.BalanceAfter,
		txn.IdempotencyKey,
		txn.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) && entry.IdempotencyKey != nil {
			// A concurrent writer recorded the same key first; drop our balance change.
			_ = tx.Rollback(ctx)
			return r.replay(ctx, r.pool, *entry.IdempotencyKey)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.LedgerResult{Card: *card, Transaction: txn, Applied: true}, nil
}

func (r *civicCardRepository) AddAchievements(ctx context.Context, userID string, badges []domain.Badge) (*domain.CivicCard, error) {
	tags := make([]string, len(badges))
	for i, b := range badges {
		tags[i] = string(b)
	}
	const query = `
        UPDATE civic_cards SET achievements=(
            SELECT ARRAY(SELECT DISTINCT unnest(achievements || $2::text[]) ORDER BY 1)
        ), updated_at=NOW()
        WHERE user_id=$1
        RETURNING ` + cardColumns
	card, err := scanCard(r.pool.QueryRow(ctx, query, userID, tags))
	if err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// replay returns the previously applied result for key, or nil when the key is unused.
func (r *civicCardRepository) replay(ctx context.Context, q queryRower, key string) (*domain.LedgerResult, error) {
	txn, err := scanTransaction(q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	card, err := scanCard(q.QueryRow(ctx, `SELECT `+cardColumns+` FROM civic_cards WHERE user_id=$1`, txn.UserID))
	if err != nil {
		return nil, notFound(err)
	}
	return &domain.LedgerResult{Card: *card, Transaction: *txn, Applied: false}, nil
}

func referenceKindArg(kind *domain.ReferenceKind) *string {
	if kind == nil {
		return nil
	}
	s := string(*kind)
	return &s
}

func scanCard(row pgx.Row) (*domain.CivicCard, error) {
	var (
		card     domain.CivicCard
		tags     []string
		lastUsed *time.Time
	)
	if err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.CardNumber,
		&card.Balance,
		&card.TotalEarned,
		&card.TotalSpent,
		&tags,
		&card.MemberSince,
		&lastUsed,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	card.LastUsed = lastUsed
	for _, tag := range tags {
		card.Achievements = append(card.Achievements, domain.Badge(tag))
	}
	return &card, nil
}
