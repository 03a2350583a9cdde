package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanecho/civic-service/internal/domain"
)

// ProblemFilter captures listing parameters.
type ProblemFilter struct {
	ReporterID *string
	Statuses   []domain.ProblemStatus
	Limit      int
	Offset     int
}

// ProblemRepository encapsulates problem persistence.
// Transition and AddUpvote are single conditional statements so concurrent callers cannot lose updates.
type ProblemRepository interface {
	Create(ctx context.Context, problem *domain.Problem) error
	GetByID(ctx context.Context, id string) (*domain.Problem, error)
	List(ctx context.Context, filter ProblemFilter) ([]domain.Problem, int, error)
	CountByReporter(ctx context.Context, reporterID string) (int, error)
	Transition(ctx context.Context, id string, from []domain.ProblemStatus, t domain.ProblemTransition) (*domain.Problem, error)
	AddUpvote(ctx context.Context, id, userID string) (int, bool, error)
}

const problemColumns = `id, reporter_id, title, description, category, location, image_url, status,
               upvotes, votes_count, assigned_to, assigned_at, verified_by, verified_at, verification_image,
               submitted_to_government, submitted_at, created_at, updated_at`

type problemRepository struct {
	pool *pgxpool.Pool
}

// NewProblemRepository instantiates repository.
func NewProblemRepository(pool *pgxpool.Pool) ProblemRepository {
	return &problemRepository{pool: pool}
}

func (r *problemRepository) Create(ctx context.Context, problem *domain.Problem) error {
	const query = `
        INSERT INTO problems (id, reporter_id, title, description, category, location, image_url, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	_, err := r.pool.Exec(ctx, query,
		problem.ID,
		problem.ReporterID,
		problem.Title,
		problem.Description,
		problem.Category,
		problem.Location,
		problem.ImageURL,
		string(problem.Status),
		problem.CreatedAt,
	)
	return err
}

func (r *problemRepository) GetByID(ctx context.Context, id string) (*domain.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems WHERE id=$1`
	problem, err := scanProblem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return problem, nil
}

func (r *problemRepository) List(ctx context.Context, filter ProblemFilter) ([]domain.Problem, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM problems WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM problems WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		problemColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *problem)
	}
	return result, total, rows.Err()
}

func (r *problemRepository) CountByReporter(ctx context.Context, reporterID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM problems WHERE reporter_id=$1`, reporterID).Scan(&count)
	return count, err
}

func (r *problemRepository) Transition(ctx context.Context, id string, from []domain.ProblemStatus, t domain.ProblemTransition) (*domain.Problem, error) {
	var assignedAt, verifiedAt, submittedAt any
	if t.AssignedTo != nil {
		assignedAt = t.At
	}
	if t.VerifiedBy != nil {
		verifiedAt = t.At
	}
	if t.SubmittedToGovernment {
		submittedAt = t.At
	}

	query := `
        UPDATE problems SET
            status=$3,
            assigned_to=COALESCE(assigned_to, $4),
            assigned_at=COALESCE(assigned_at, $5),
            verified_by=COALESCE(verified_by, $6),
            verified_at=COALESCE(verified_at, $7),
            verification_image=COALESCE(verification_image, $8),
            submitted_to_government=submitted_to_government OR $9,
            submitted_at=COALESCE(submitted_at, $10),
            updated_at=$11
        WHERE id=$1 AND status = ANY($2)
        RETURNING ` + problemColumns

	problem, err := scanProblem(r.pool.QueryRow(ctx, query,
		id,
		statusStrings(from),
		string(t.To),
		t.AssignedTo,
		assignedAt,
		t.VerifiedBy,
		verifiedAt,
		t.VerificationImage,
		t.SubmittedToGovernment,
		submittedAt,
		t.At,
	))
	if err == nil {
		return problem, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, r.missOrConflict(ctx, id)
}

func (r *problemRepository) AddUpvote(ctx context.Context, id, userID string) (int, bool, error) {
	const query = `
        UPDATE problems SET upvotes=array_append(upvotes, $2), votes_count=votes_count+1, updated_at=NOW()
        WHERE id=$1 AND NOT ($2 = ANY(upvotes))
        RETURNING votes_count`
	var votes int
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(&votes)
	if err == nil {
		return votes, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if err := r.pool.QueryRow(ctx, `SELECT votes_count FROM problems WHERE id=$1`, id).Scan(&votes); err != nil {
		return 0, false, notFound(err)
	}
	return votes, false, nil
}

// missOrConflict explains why a conditional update matched no row.
func (r *problemRepository) missOrConflict(ctx context.Context, id string) error {
	var status string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM problems WHERE id=$1`, id).Scan(&status); err != nil {
		return notFound(err)
	}
	return ErrStatusConflict
}

func statusStrings(statuses []domain.ProblemStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanProblem(row pgx.Row) (*domain.Problem, error) {
	var (
		problem domain.Problem
		status  string
	)
	if err := row.Scan(
		&problem.ID,
		&problem.ReporterID,
		&problem.Title,
		&problem.Description,
		&problem.Category,
		&problem.Location,
		&problem.ImageURL,
		&status,
		&problem.Upvotes,
		&problem.VotesCount,
		&problem.AssignedTo,
		&problem.AssignedAt,
		&problem.VerifiedBy,
		&problem.VerifiedAt,
		&problem.VerificationImage,
		&problem.SubmittedToGovernment,
		&problem.SubmittedAt,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	); err != nil {
		return nil, err
	}
	problem.Status = domain.ProblemStatus(status)
	return &problem, nil
}
