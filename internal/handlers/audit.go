package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
)

// AuditHandler exposes audit querying, integrity verification and
// reporting.
type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Logs queries financial audit records.
func (h *AuditHandler) Logs(c *fiber.Ctx) error {
	filters := services.FinancialLogFilters{
		TransactionRef: strings.TrimSpace(c.Query("transaction_ref")),
		OperationType:  strings.TrimSpace(c.Query("operation_type")),
		Limit:          c.QueryInt("limit"),
	}

	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
		}
		filters.UserID = parsed
	}
	if from, err := parseTimeQuery(c, "from"); err != nil {
		return err
	} else {
		filters.From = from
	}
	if to, err := parseTimeQuery(c, "to"); err != nil {
		return err
	} else {
		filters.To = to
	}
	if raw := strings.TrimSpace(c.Query("min_amount")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid min_amount")
		}
		filters.MinAmount = &parsed
	}
	if raw := strings.TrimSpace(c.Query("max_amount")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid max_amount")
		}
		filters.MaxAmount = &parsed
	}

	logs, err := h.audit.QueryFinancialLogs(c.UserContext(), filters)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}

// Verify recomputes the audit hash of one row and reports whether it
// matches the stored value.
func (h *AuditHandler) Verify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid audit log id")
	}

	logType := c.Query("type", models.AuditTypeFinancial)
	switch logType {
	case models.AuditTypeFinancial, models.AuditTypeSecurity, models.AuditTypeEncryption:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown audit log type")
	}

	result, err := h.audit.VerifyIntegrity(c.UserContext(), id, logType)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "audit log not found")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

// Report aggregates audit rows over a date window.
func (h *AuditHandler) Report(c *fiber.Ctx) error {
	reportType := strings.TrimSpace(c.Query("type"))
	if reportType == "" {
		return fiber.NewError(fiber.StatusBadRequest, "type is required")
	}

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return err
	}

	report, err := h.audit.GenerateReport(c.UserContext(), reportType, from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"report":  report,
	})
}

func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" timestamp, expected RFC3339")
	}
	return &parsed, nil
}
