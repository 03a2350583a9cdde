package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/urbanecho/civic-service/internal/api/dto"
	"github.com/urbanecho/civic-service/internal/auth"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/service"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// ProblemsHandler serves problem reporting, voting and lifecycle endpoints.
type ProblemsHandler struct {
	problems *service.ProblemService
	votes    *service.VoteService
}

// NewProblemsHandler constructs handler.
func NewProblemsHandler(problems *service.ProblemService, votes *service.VoteService) *ProblemsHandler {
	return &ProblemsHandler{problems: problems, votes: votes}
}

// Create POST /api/problems.
func (h *ProblemsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateProblemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problem, err := h.problems.Report(c.UserContext(), actor, service.ReportInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		ImageURL:    req.Image,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": problemResponse(problem)})
}

// List GET /api/problems.
func (h *ProblemsHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	input := service.ProblemListInput{
		All:         parseBoolQuery(c, "all", false),
		PageRequest: pageRequest(c),
	}
	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		input.ReporterID = &userID
	}
	problems, page, err := h.problems.List(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.ProblemResponse, 0, len(problems))
	for i := range problems {
		items = append(items, problemResponse(&problems[i]))
	}
	return c.JSON(fiber.Map{"data": items, "pagination": page})
}

// Get GET /api/problems/:id.
func (h *ProblemsHandler) Get(c *fiber.Ctx) error {
	problem, err := h.problems.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemResponse(problem)})
}

// Upvote POST /api/problems/:id/upvote.
func (h *ProblemsHandler) Upvote(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	result, err := h.votes.Upvote(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UpvoteResponse{VotesCount: result.VotesCount, Action: result.Action()}})
}

// Assign POST /api/problems/:id/assign.
func (h *ProblemsHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignProblemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	problem, err := h.problems.Assign(c.UserContext(), actor, c.Params("id"), req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemResponse(problem)})
}

// Verify POST /api/problems/:id/verify.
func (h *ProblemsHandler) Verify(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.VerifyProblemRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	problem, err := h.problems.Verify(c.UserContext(), actor, c.Params("id"), req.VerificationImage)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemResponse(problem)})
}

// Submit POST /api/problems/:id/submit.
func (h *ProblemsHandler) Submit(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	problem, err := h.problems.Submit(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": problemResponse(problem)})
}

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func pageRequest(c *fiber.Ctx) service.PageRequest {
	return service.PageRequest{
		Page:  parseIntQuery(c, "page", 1),
		Limit: parseIntQuery(c, "limit", 0),
	}
}

func parseIntQuery(c *fiber.Ctx, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseBoolQuery(c *fiber.Ctx, key string, def bool) bool {
	val := c.Query(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func problemResponse(p *domain.Problem) dto.ProblemResponse {
	upvotes := p.Upvotes
	if upvotes == nil {
		upvotes = []string{}
	}
	return dto.ProblemResponse{
		ID:                    p.ID,
		ReporterID:            p.ReporterID,
		Title:                 p.Title,
		Description:           p.Description,
		Category:              p.Category,
		Location:              p.Location,
		Image:                 p.ImageURL,
		Status:                p.Status,
		Upvotes:               upvotes,
		VotesCount:            p.VotesCount,
		AssignedTo:            p.AssignedTo,
		AssignedAt:            p.AssignedAt,
		VerifiedBy:            p.VerifiedBy,
		VerifiedAt:            p.VerifiedAt,
		VerificationImage:     p.VerificationImage,
		SubmittedToGovernment: p.SubmittedToGovernment,
		SubmittedAt:           p.SubmittedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}
