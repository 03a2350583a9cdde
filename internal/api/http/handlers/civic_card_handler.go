package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/urbanecho/civic-service/internal/api/dto"
	"github.com/urbanecho/civic-service/internal/domain"
	"github.com/urbanecho/civic-service/internal/service"
)

// CivicCardHandler exposes the caller's coin ledger.
type CivicCardHandler struct {
	ledger *service.LedgerService
}

// NewCivicCardHandler constructs handler.
func NewCivicCardHandler(ledger *service.LedgerService) *CivicCardHandler {
	return &CivicCardHandler{ledger: ledger}
}

// Get GET /api/civic-card.
func (h *CivicCardHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	view, err := h.ledger.GetCard(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CivicCardResponse{
		UserID:      view.Card.UserID,
		CardNumber:  view.Card.CardNumber,
		Balance:     view.Card.Balance,
		TotalEarned: view.Card.TotalEarned,
		TotalSpent:  view.Card.TotalSpent,
		MemberSince: view.Card.MemberSince,
		LastUsed:    view.Card.LastUsed,
		Badges:      view.Badges,
		NewBadges:   view.NewBadges,
	}})
}

// Transactions GET /api/civic-card/transactions.
func (h *CivicCardHandler) Transactions(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	txns, page, err := h.ledger.ListTransactions(c.UserContext(), actor.UserID, pageRequest(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transactionResponses(txns), "pagination": page})
}

// Stats GET /api/civic-card/stats.
func (h *CivicCardHandler) Stats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	stats, err := h.ledger.DashboardStats(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardStatsResponse{
		Balance:            stats.Card.Balance,
		CardNumber:         stats.Card.CardNumber,
		TotalEarned:        stats.TotalEarned,
		TotalSpent:         stats.TotalSpent,
		TotalRefunded:      stats.TotalRefunded,
		TransactionCount:   stats.TransactionCount,
		RecentTransactions: transactionResponses(stats.Recent),
	}})
}

func transactionResponses(txns []domain.Transaction) []dto.TransactionResponse {
	items := make([]dto.TransactionResponse, 0, len(txns))
	for _, t := range txns {
		items = append(items, dto.TransactionResponse{
			ID:            t.ID,
			Type:          t.Type,
			Amount:        t.Amount,
			Description:   t.Description,
			ReferenceID:   t.ReferenceID,
			ReferenceKind: t.ReferenceKind,
			BalanceAfter:  t.BalanceAfter,
			CreatedAt:     t.CreatedAt,
		})
	}
	return items
}
