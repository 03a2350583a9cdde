package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanecho/civic-service/internal/domain"
)

// TransactionTotals sums a user's ledger history by type.
type TransactionTotals struct {
	Earned   int64
	Spent    int64
	Refunded int64
	Count    int
}

// TransactionRepository reads the append-only transaction log. Writes go through CivicCardRepository.ApplyEntry.
type TransactionRepository interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, int, error)
	Totals(ctx context.Context, userID string) (TransactionTotals, error)
}

const transactionColumns = `id, user_id, type, amount, description, reference_id, reference_kind,
               balance_after, idempotency_key, created_at`

type transactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository returns a Postgres-backed implementation.
func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &transactionRepository{pool: pool}
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset = clampPage(limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *txn)
	}
	return result, total, rows.Err()
}

func (r *transactionRepository) Totals(ctx context.Context, userID string) (TransactionTotals, error) {
	const query = `
        SELECT COALESCE(SUM(amount) FILTER (WHERE type='earned'), 0),
               COALESCE(SUM(amount) FILTER (WHERE type='spent'), 0),
               COALESCE(SUM(amount) FILTER (WHERE type='refunded'), 0),
               COUNT(*)
        FROM transactions WHERE user_id=$1`
	var totals TransactionTotals
	err := r.pool.QueryRow(ctx, query, userID).Scan(&totals.Earned, &totals.Spent, &totals.Refunded, &totals.Count)
	return totals, err
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn     domain.Transaction
		txnType string
		kind    *string
	)
	if err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txnType,
		&txn.Amount,
		&txn.Description,
		&txn.ReferenceID,
		&kind,
		&txn.BalanceAfter,
		&txn.IdempotencyKey,
		&txn.CreatedAt,
	); err != nil {
		return nil, err
	}
	txn.Type = domain.TransactionType(txnType)
	if kind != nil {
		k := domain.ReferenceKind(*kind)
		txn.ReferenceKind = &k
	}
	return &txn, nil
}
