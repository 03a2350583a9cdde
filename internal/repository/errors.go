package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrStatusConflict    = errors.New("status does not allow this transition")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrRewardUnavailable = errors.New("reward unavailable")
	ErrDuplicateCode     = errors.New("duplicate code")
	ErrCodeNotActive     = errors.New("code not active")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
