package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanecho/civic-service/internal/domain"
)

// RedemptionCodeRepository persists claim tokens.
type RedemptionCodeRepository interface {
	// Create fails with ErrDuplicateCode when the code string is taken.
	Create(ctx context.Context, code *domain.RedemptionCode) error
	GetByCode(ctx context.Context, code string) (*domain.RedemptionCode, error)
	// Consume flips an active, unexpired code to used. Anything else yields ErrCodeNotActive.
	Consume(ctx context.Context, code, usedBy string, now time.Time) (*domain.RedemptionCode, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]domain.RedemptionCode, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

const codeColumns = `id, code, user_id, reward_id, transaction_id, status, expires_at, used_at, used_by,
               reward_name, merchant, coin_cost, created_at`

type redemptionCodeRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionCodeRepository returns a Postgres-backed implementation.
func NewRedemptionCodeRepository(pool *pgxpool.Pool) RedemptionCodeRepository {
	return &redemptionCodeRepository{pool: pool}
}

func (r *redemptionCodeRepository) Create(ctx context.Context, code *domain.RedemptionCode) error {
	const query = `
        INSERT INTO redemption_codes (id, code, user_id, reward_id, transaction_id, status, expires_at,
                                      reward_name, merchant, coin_cost, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.pool.Exec(ctx, query,
		code.ID,
		code.Code,
		code.UserID,
		code.RewardID,
		code.TransactionID,
		string(code.Status),
		code.ExpiresAt,
		code.RewardName,
		code.Merchant,
		code.CoinCost,
		code.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *redemptionCodeRepository) GetByCode(ctx context.Context, code string) (*domain.RedemptionCode, error) {
	rc, err := scanCode(r.pool.QueryRow(ctx, `SELECT `+codeColumns+` FROM redemption_codes WHERE code=$1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return rc, nil
}

func (r *redemptionCodeRepository) Consume(ctx context.Context, code, usedBy string, now time.Time) (*domain.RedemptionCode, error) {
	query := `
        UPDATE redemption_codes SET status='used', used_at=$3, used_by=$2
        WHERE code=$1 AND status='active' AND expires_at > $3
        RETURNING ` + codeColumns
	rc, err := scanCode(r.pool.QueryRow(ctx, query, code, usedBy, now))
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := r.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	return nil, ErrCodeNotActive
}

func (r *redemptionCodeRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]domain.RedemptionCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+codeColumns+` FROM redemption_codes
        WHERE user_id=$1 AND status='active' AND expires_at > $2
        ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RedemptionCode
	for rows.Next() {
		rc, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rc)
	}
	return result, rows.Err()
}

func (r *redemptionCodeRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE redemption_codes SET status='expired' WHERE status='active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanCode(row pgx.Row) (*domain.RedemptionCode, error) {
	var (
		rc     domain.RedemptionCode
		status string
	)
	if err := row.Scan(
		&rc.ID,
		&rc.Code,
		&rc.UserID,
		&rc.RewardID,
		&rc.TransactionID,
		&status,
		&rc.ExpiresAt,
		&rc.UsedAt,
		&rc.UsedBy,
		&rc.RewardName,
		&rc.Merchant,
		&rc.CoinCost,
		&rc.CreatedAt,
	); err != nil {
		return nil, err
	}
	rc.Status = domain.RedemptionCodeStatus(status)
	return &rc, nil
}
