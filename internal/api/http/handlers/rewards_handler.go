package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/urbanecho/civic-service/internal/api/dto"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/service"
	apperrors "github.com/urbanecho/civic-service/pkg/util/errorutil"
)

// RewardsHandler serves the reward catalog and redemption endpoints.
type RewardsHandler struct {
	rewards     *service.RewardService
	redemptions *service.RedemptionService
}

// NewRewardsHandler constructs handler.
func NewRewardsHandler(rewards *service.RewardService, redemptions *service.RedemptionService) *RewardsHandler {
	return &RewardsHandler{rewards: rewards, redemptions: redemptions}
}

// List GET /api/rewards.
func (h *RewardsHandler) List(c *fiber.Ctx) error {
	rewards, page, err := h.rewards.List(c.UserContext(), service.RewardListInput{
		Category:    c.Query("category", service.CategoryAll),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return err
	}
	items := make([]dto.RewardResponse, 0, len(rewards))
	for i := range rewards {
		items = append(items, rewardResponse(&rewards[i]))
	}
	return c.JSON(fiber.Map{"data": items, "pagination": page})
}

// Get GET /api/rewards/:id.
func (h *RewardsHandler) Get(c *fiber.Ctx) error {
	reward, err := h.rewards.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rewardResponse(reward)})
}

// Create POST /api/rewards.
func (h *RewardsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reward, err := h.rewards.Create(c.UserContext(), actor, service.RewardInput{
		Name:             req.Name,
		Description:      req.Description,
		CoinCost:         req.CoinCost,
		Category:         req.Category,
		Merchant:         req.Merchant,
		MerchantLocation: req.MerchantLocation,
		ImageURL:         req.ImageURL,
		Terms:            req.Terms,
		ValidUntil:       req.ValidUntil,
		MaxRedemptions:   req.MaxRedemptions,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": rewardResponse(reward)})
}

// Redeem POST /api/rewards/:id/redeem.
func (h *RewardsHandler) Redeem(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	redemption, err := h.redemptions.Redeem(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.RedeemResponse{
		NewBalance:     redemption.NewBalance,
		RedemptionCode: codeResponse(&redemption.Code),
		Reward:         rewardResponse(&redemption.Reward),
		Instructions:   redemption.Instructions,
	}})
}

// MyCodes GET /api/redemptions/mine.
func (h *RewardsHandler) MyCodes(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	codes, err := h.redemptions.ListActiveCodes(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	items := make([]dto.RedemptionCodeResponse, 0, len(codes))
	for i := range codes {
		items = append(items, codeResponse(&codes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Validate POST /api/redemptions/validate. Merchant facing; no principal required.
func (h *RewardsHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.redemptions.ValidateCode(c.UserContext(), req.Code, req.MerchantName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ValidateCodeResponse{
		Code:       result.Code.Code,
		RewardName: result.RewardName,
		Merchant:   result.Merchant,
		CoinCost:   result.CoinCost,
		UserID:     result.UserID,
		RedeemedAt: result.RedeemedAt,
	}})
}

func rewardResponse(r *domain.Reward) dto.RewardResponse {
	return dto.RewardResponse{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          r.Description,
		CoinCost:             r.CoinCost,
		Category:             r.Category,
		Merchant:             r.Merchant,
		MerchantLocation:     r.MerchantLocation,
		ImageURL:             r.ImageURL,
		Terms:                r.Terms,
		ValidUntil:           r.ValidUntil,
		MaxRedemptions:       r.MaxRedemptions,
		CurrentRedemptions:   r.CurrentRedemptions,
		AvailableRedemptions: r.AvailableRedemptions(),
		IsActive:             r.IsActive,
	}
}

func codeResponse(rc *domain.RedemptionCode) dto.RedemptionCodeResponse {
	return dto.RedemptionCodeResponse{
		Code:       rc.Code,
		RewardID:   rc.RewardID,
		RewardName: rc.RewardName,
		Merchant:   rc.Merchant,
		CoinCost:   rc.CoinCost,
		Status:     rc.Status,
		ExpiresAt:  rc.ExpiresAt,
		CreatedAt:  rc.CreatedAt,
	}
}
