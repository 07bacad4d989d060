package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/middleware"
	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
	"github.com/example/medipay/internal/utils"
)

// PaymentHandler exposes the payment pipeline over HTTP.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

type processPaymentRequest struct {
	Contact       string `json:"contact"`
	PaymentMethod string `json:"payment_method"`
	AddonCode     string `json:"addon_code"`
	SessionID     string `json:"session_id"`
	AttemptCount  int    `json:"attempt_count"`
}

// Process runs a payment attempt against a booking.
func (h *PaymentHandler) Process(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid booking id")
	}

	payerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	var req processPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result := h.payments.ProcessPayment(c.UserContext(), bookingID, services.PaymentPayload{
		Contact:       strings.TrimSpace(req.Contact),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		AddonCode:     strings.TrimSpace(req.AddonCode),
	}, payerID, req.AttemptCount, services.RequestContext{
		OriginAddress:   c.IP(),
		ClientSignature: c.Get("X-Device-Signature"),
		SessionID:       req.SessionID,
		UserAgent:       c.Get("User-Agent"),
	})

	if result.Error != nil {
		return writePaymentError(c, result.Error)
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"transaction":    result.Transaction,
		"payment_result": result.PaymentResult,
		"receipt_ref":    result.ReceiptRef,
	})
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// Refund reverses a completed transaction.
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	transactionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction id")
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "refund amount must be positive")
	}

	result := h.payments.Refund(c.UserContext(), transactionID, req.Amount, req.Reason)
	if result.Error != nil {
		return writePaymentError(c, result.Error)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"transaction": result.Transaction,
	})
}

// List returns transaction history, optionally filtered.
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Transaction{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		query = query.Where("user_id = ?", parsed)
	}
	if hospitalID := strings.TrimSpace(c.Query("hospital_id")); hospitalID != "" {
		parsed, err := uuid.Parse(hospitalID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid hospital_id")
		}
		query = query.Where("hospital_id = ?", parsed)
	}
	if ref := strings.TrimSpace(c.Query("transaction_ref")); ref != "" {
		query = query.Where("transaction_ref = ?", ref)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var txns []models.Transaction
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&txns).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// writePaymentError maps the error taxonomy onto HTTP statuses and a
// stable response shape.
func writePaymentError(c *fiber.Ctx, perr *services.PaymentError) error {
	status := fiber.StatusInternalServerError
	switch perr.Info.Kind {
	case services.ErrKindValidation:
		status = fiber.StatusBadRequest
	case services.ErrKindStateConflict:
		status = fiber.StatusConflict
	case services.ErrKindSecurity:
		status = fiber.StatusForbidden
	case services.ErrKindGateway:
		status = fiber.StatusPaymentRequired
	}

	body := fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code": perr.Info.Code,
			"message": fiber.Map{
				"en": perr.Info.Message["en"],
				"bn": perr.Info.Message["bn"],
			},
			"details": perr.Details,
		},
		"can_retry": perr.CanRetry(),
	}
	if retry := perr.Retry(); retry != nil {
		body["retry"] = retry
	}

	return c.Status(status).JSON(body)
}
