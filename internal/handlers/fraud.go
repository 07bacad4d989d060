package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/medipay/internal/services"
)

// FraudHandler exposes the risk engine for pre-flight checks and rule
// tuning.
type FraudHandler struct {
	fraud *services.FraudService
}

func NewFraudHandler(fraud *services.FraudService) *FraudHandler {
	return &FraudHandler{fraud: fraud}
}

// Analyze runs a standalone fraud evaluation over the posted context.
func (h *FraudHandler) Analyze(c *fiber.Ctx) error {
	var txc services.TransactionContext
	if err := c.BodyParser(&txc); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if txc.OriginAddress == "" {
		txc.OriginAddress = c.IP()
	}

	analysis := h.fraud.Analyze(c.UserContext(), txc)
	return c.JSON(fiber.Map{
		"success":  analysis.Success,
		"analysis": analysis,
	})
}

// Rules returns the active rule set.
func (h *FraudHandler) Rules(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"rules":   h.fraud.Rules(),
	})
}

// UpdateRules swaps the active rule set.
func (h *FraudHandler) UpdateRules(c *fiber.Ctx) error {
	var rules services.FraudRules
	if err := c.BodyParser(&rules); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.fraud.UpdateRules(rules); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"rules":   h.fraud.Rules(),
	})
}
