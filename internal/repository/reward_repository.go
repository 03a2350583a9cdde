package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanecho/civic-service/internal/domain"
)

// RewardFilter narrows catalog listings to rewards redeemable at AvailableAt.
type RewardFilter struct {
	Category    *domain.RewardCategory
	AvailableAt time.Time
	Limit       int
	Offset      int
}

// RewardRepository encapsulates catalog persistence and capacity accounting.
type RewardRepository interface {
	Create(ctx context.Context, reward *domain.Reward) error
	GetByID(ctx context.Context, id string) (*domain.Reward, error)
	List(ctx context.Context, filter RewardFilter) ([]domain.Reward, int, error)
	// ReserveRedemption takes one unit of capacity, failing with ErrRewardUnavailable
	// when the reward is inactive, expired at now, or capped.
	ReserveRedemption(ctx context.Context, id string, now time.Time) (*domain.Reward, error)
	ReleaseRedemption(ctx context.Context, id string) error
}

const rewardColumns = `id, name, description, coin_cost, category, merchant, merchant_location, image_url, terms,
               valid_until, max_redemptions, current_redemptions, is_active, created_at, updated_at`

type rewardRepository struct {
	pool *pgxpool.Pool
}

// NewRewardRepository returns a Postgres-backed implementation.
func NewRewardRepository(pool *pgxpool.Pool) RewardRepository {
	return &rewardRepository{pool: pool}
}

func (r *rewardRepository) Create(ctx context.Context, reward *domain.Reward) error {
	const query = `
        INSERT INTO rewards (id, name, description, coin_cost, category, merchant, merchant_location, image_url, terms,
                             valid_until, max_redemptions, current_redemptions, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`
	_, err := r.pool.Exec(ctx, query,
		reward.ID,
		reward.Name,
		reward.Description,
		reward.CoinCost,
		string(reward.Category),
		reward.Merchant,
		reward.MerchantLocation,
		reward.ImageURL,
		reward.Terms,
		reward.ValidUntil,
		reward.MaxRedemptions,
		reward.CurrentRedemptions,
		reward.IsActive,
		reward.CreatedAt,
	)
	return err
}

func (r *rewardRepository) GetByID(ctx context.Context, id string) (*domain.Reward, error) {
	reward, err := scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return reward, nil
}

func (r *rewardRepository) List(ctx context.Context, filter RewardFilter) ([]domain.Reward, int, error) {
	args := []any{filter.AvailableAt}
	clauses := []string{
		"is_active",
		"valid_until > $1",
		"(max_redemptions IS NULL OR current_redemptions < max_redemptions)",
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rewards WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM rewards WHERE %s ORDER BY coin_cost ASC, id LIMIT %d OFFSET %d`,
		rewardColumns, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Reward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *reward)
	}
	return result, total, rows.Err()
}

func (r *rewardRepository) ReserveRedemption(ctx context.Context, id string, now time.Time) (*domain.Reward, error) {
	query := `
        UPDATE rewards SET current_redemptions=current_redemptions+1, updated_at=$2
        WHERE id=$1 AND is_active AND valid_until > $2
          AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)
        RETURNING ` + rewardColumns
	reward, err := scanReward(r.pool.QueryRow(ctx, query, id, now))
	if err == nil {
		return reward, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrRewardUnavailable
}

func (r *rewardRepository) ReleaseRedemption(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE rewards SET current_redemptions=GREATEST(current_redemptions-1, 0), updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReward(row pgx.Row) (*domain.Reward, error) {
	var (
		reward   domain.Reward
		category string
	)
	if err := row.Scan(
		&reward.ID,
		&reward.Name,
		&reward.Description,
		&reward.CoinCost,
		&category,
		&reward.Merchant,
		&reward.MerchantLocation,
		&reward.ImageURL,
		&reward.Terms,
		&reward.ValidUntil,
		&reward.MaxRedemptions,
		&reward.CurrentRedemptions,
		&reward.IsActive,
		&reward.CreatedAt,
		&reward.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reward.Category = domain.RewardCategory(category)
	return &reward, nil
}
