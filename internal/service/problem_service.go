package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/urbanecho/civic-service/internal/config"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/events"
	"github.com/urbanecho/civic-service/internal/persistence"
	"github.com/urbanecho/civic-service/internal/repository"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

const reportLimitWindow = 24 * time.Hour

// ProblemService owns every status change of a problem. Coin awards are left to event subscribers.
type ProblemService struct {
	problems   repository.ProblemRepository
	dispatcher events.Dispatcher
	limiter    persistence.WindowCounter
	lifecycle  config.LifecycleConfig
	rateLimit  config.RateLimitConfig
	pageSize   int
	maxPage    int
	logger     *zap.Logger
	clock      func() time.Time
}

// ProblemDependencies bundles collaborators for the problem service.
type ProblemDependencies struct {
	ProblemRepo repository.ProblemRepository
	Dispatcher  events.Dispatcher
	Limiter     persistence.WindowCounter
	Lifecycle   config.LifecycleConfig
	RateLimit   config.RateLimitConfig
	Rewards     config.RewardsConfig
	Logger      *zap.Logger
	Clock       func() time.Time
}

// ReportInput describes a new problem.
type ReportInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	ImageURL    *string
}

// ProblemListInput describes listing filters. All includes done problems and is NGO only.
type ProblemListInput struct {
	ReporterID *string
	All        bool
	PageRequest
}

// NewProblemService constructs the service.
func NewProblemService(deps ProblemDependencies) *ProblemService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lifecycle := deps.Lifecycle
	if len(lifecycle.Categories) == 0 {
		lifecycle.Categories = config.DefaultCategories
	}
	return &ProblemService{
		problems:   deps.ProblemRepo,
		dispatcher: deps.Dispatcher,
		limiter:    deps.Limiter,
		lifecycle:  lifecycle,
		rateLimit:  deps.RateLimit,
		pageSize:   deps.Rewards.DefaultPageSize,
		maxPage:    deps.Rewards.MaxPageSize,
		logger:     logger,
		clock:      nowFunc(deps.Clock),
	}
}

// Report files a new pending problem for the caller.
func (s *ProblemService) Report(ctx context.Context, actor domain.Actor, input ReportInput) (*domain.Problem, error) {
	if actor.UserID == "" {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	title := strings.TrimSpace(input.Title)
	category := strings.TrimSpace(input.Category)
	location := strings.TrimSpace(input.Location)
	missing := []string{}
	if title == "" {
		missing = append(missing, "title")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !s.knownCategory(category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{
			"category": category,
			"allowed":  s.lifecycle.Categories,
		})
	}

	if err := s.checkReportLimit(ctx, actor.UserID); err != nil {
		return nil, err
	}

	now := s.clock()
	problem := &domain.Problem{
		ID:          uuid.NewString(),
		ReporterID:  actor.UserID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    category,
		Location:    location,
		ImageURL:    trimmedOrNil(input.ImageURL),
		Status:      domain.ProblemStatusPending,
		Upvotes:     []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.problems.Create(ctx, problem); err != nil {
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventProblemReported,
		SubjectID: problem.ID,
		Actor:     eventActor(actor),
		Payload: events.ProblemReportedPayload{
			ReporterID: problem.ReporterID,
			Title:      problem.Title,
			Category:   problem.Category,
		},
	})
	return problem, nil
}

// Assign moves a pending problem to assigned.
func (s *ProblemService) Assign(ctx context.Context, actor domain.Actor, problemID, staffID string) (*domain.Problem, error) {
	if err := requireNGO(actor, "assign problems"); err != nil {
		return nil, err
	}
	if err := s.checkTransition(ctx, problemID, domain.ProblemStatusAssigned); err != nil {
		return nil, err
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, apperrors.NewValidationError("staffId is required", nil)
	}

	problem, err := s.transition(ctx, problemID, domain.ProblemTransition{
		To:         domain.ProblemStatusAssigned,
		AssignedTo: &staffID,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventProblemAssigned,
		SubjectID: problem.ID,
		Actor:     eventActor(actor),
		Payload:   events.ProblemAssignedPayload{StaffID: staffID},
	})
	return problem, nil
}

// Verify records the NGO's verification, optionally with a photo.
func (s *ProblemService) Verify(ctx context.Context, actor domain.Actor, problemID string, verificationImage *string) (*domain.Problem, error) {
	if err := requireNGO(actor, "verify problems"); err != nil {
		return nil, err
	}
	if err := s.checkTransition(ctx, problemID, domain.ProblemStatusVerified); err != nil {
		return nil, err
	}
	image := trimmedOrNil(verificationImage)
	if image == nil && s.lifecycle.RequireVerificationPhoto {
		return nil, apperrors.NewValidationError("verification image is required", map[string]any{"field": "verificationImage"})
	}

	verifier := actor.UserID
	problem, err := s.transition(ctx, problemID, domain.ProblemTransition{
		To:                domain.ProblemStatusVerified,
		VerifiedBy:        &verifier,
		VerificationImage: image,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventProblemVerified,
		SubjectID: problem.ID,
		Actor:     eventActor(actor),
		Payload:   events.ProblemVerifiedPayload{VerifiedBy: verifier, VerificationImage: image},
	})
	return problem, nil
}

// Submit hands a verified problem to the government and closes it.
func (s *ProblemService) Submit(ctx context.Context, actor domain.Actor, problemID string) (*domain.Problem, error) {
	if err := requireNGO(actor, "submit problems"); err != nil {
		return nil, err
	}

	problem, err := s.transition(ctx, problemID, domain.ProblemTransition{
		To:                    domain.ProblemStatusDone,
		SubmittedToGovernment: true,
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.clock, events.Event{
		Type:      events.EventProblemResolved,
		SubjectID: problem.ID,
		Actor:     eventActor(actor),
		Payload: events.ProblemResolvedPayload{
			ReporterID: problem.ReporterID,
			Title:      problem.Title,
		},
	})
	return problem, nil
}

// Get returns a single problem.
func (s *ProblemService) Get(ctx context.Context, problemID string) (*domain.Problem, error) {
	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		return nil, mapRepoError(err, "problem", map[string]any{"problem_id": problemID})
	}
	return problem, nil
}

// List returns problems newest first. Done problems are excluded unless an NGO asks for all.
func (s *ProblemService) List(ctx context.Context, actor domain.Actor, input ProblemListInput) ([]domain.Problem, Pagination, error) {
	if input.All && !actor.IsNGO() {
		return nil, Pagination{}, apperrors.NewForbidden("only NGO accounts can list all problems")
	}
	page, limit, offset := input.normalize(s.pageSize, s.maxPage)

	filter := repository.ProblemFilter{
		ReporterID: input.ReporterID,
		Limit:      limit,
		Offset:     offset,
	}
	if !input.All {
		filter.Statuses = []domain.ProblemStatus{
			domain.ProblemStatusPending,
			domain.ProblemStatusAssigned,
			domain.ProblemStatusVerified,
		}
	}

	problems, total, err := s.problems.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, apperrors.MapError(err)
	}
	return problems, newPagination(page, limit, total), nil
}

// sourceStatuses lists the statuses a problem may hold before moving to target.
func (s *ProblemService) sourceStatuses(target domain.ProblemStatus) []domain.ProblemStatus {
	switch target {
	case domain.ProblemStatusAssigned:
		return []domain.ProblemStatus{domain.ProblemStatusPending}
	case domain.ProblemStatusVerified:
		if s.lifecycle.RequireAssignment {
			return []domain.ProblemStatus{domain.ProblemStatusAssigned}
		}
		return []domain.ProblemStatus{domain.ProblemStatusPending, domain.ProblemStatusAssigned}
	case domain.ProblemStatusDone:
		return []domain.ProblemStatus{domain.ProblemStatusVerified}
	}
	return nil
}

func (s *ProblemService) transition(ctx context.Context, problemID string, t domain.ProblemTransition) (*domain.Problem, error) {
	from := s.sourceStatuses(t.To)
	t.At = s.clock()

	problem, err := s.problems.Transition(ctx, problemID, from, t)
	if err == nil {
		return problem, nil
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		var current domain.ProblemStatus
		if stored, getErr := s.problems.GetByID(ctx, problemID); getErr == nil {
			current = stored.Status
		}
		return nil, stateConflict(problemID, t.To, from, current)
	}
	return nil, mapRepoError(err, "problem", map[string]any{"problem_id": problemID})
}

// checkTransition reports a missing problem or a wrong source status before any
// input is validated. The conditional update in transition stays the real guard.
func (s *ProblemService) checkTransition(ctx context.Context, problemID string, target domain.ProblemStatus) error {
	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		return mapRepoError(err, "problem", map[string]any{"problem_id": problemID})
	}
	from := s.sourceStatuses(target)
	for _, status := range from {
		if problem.Status == status {
			return nil
		}
	}
	return stateConflict(problemID, target, from, problem.Status)
}

func stateConflict(problemID string, target domain.ProblemStatus, from []domain.ProblemStatus, current domain.ProblemStatus) error {
	details := map[string]any{"problem_id": problemID, "target": target, "allowed_from": from}
	if current != "" {
		details["current"] = current
	}
	return apperrors.NewStateError(fmt.Sprintf("problem cannot move to %s from its current status", target), details)
}

func (s *ProblemService) knownCategory(category string) bool {
	for _, allowed := range s.lifecycle.Categories {
		if allowed == category {
			return true
		}
	}
	return false
}

// checkReportLimit enforces the daily report cap. Limiter outages let the report through.
func (s *ProblemService) checkReportLimit(ctx context.Context, reporterID string) error {
	if s.limiter == nil || s.rateLimit.ReportsPerDay <= 0 {
		return nil
	}
	key := s.rateLimit.KeyPrefix + ":" + reporterID
	count, ttl, err := s.limiter.Incr(ctx, key, reportLimitWindow)
	if err != nil {
		s.logger.Warn("report rate limiter unavailable", zap.String("user_id", reporterID), zap.Error(err))
		return nil
	}
	if count > int64(s.rateLimit.ReportsPerDay) {
		return apperrors.NewRateLimited(math.Ceil(ttl.Seconds()))
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
