package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/config"
	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
)

// Ceiling identifiers reported on limit violations.
const (
	CeilingPerTransaction = "PER_TRANSACTION"
	CeilingDaily          = "DAILY"
)

// PaymentLimits enforces the per-transaction ceiling and the
// per-identity daily cumulative ceiling before the orchestrator runs.
// Internal errors fail open with a logged warning; the orchestrator
// still validates everything it commits.
func PaymentLimits(cfg *config.Config, db *gorm.DB, audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return c.Next()
		}

		bookingID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Next()
		}

		var booking models.Booking
		if err := db.First(&booking, "id = ?", bookingID).Error; err != nil {
			// Missing bookings are the orchestrator's call to reject.
			return c.Next()
		}

		amount := booking.PaymentAmount
		var payload services.PaymentPayload
		if err := c.BodyParser(&payload); err == nil && payload.AddonCode != "" {
			if addon, found := services.LookupAddon(payload.AddonCode); found {
				amount = amount.Add(addon.Surcharge)
			}
		}

		if amount.GreaterThan(cfg.MaxPerTransaction) {
			logSecurityEvent(c, audit, userID, "CEILING_EXCEEDED", models.SeverityWarning, map[string]any{
				"ceiling": CeilingPerTransaction,
				"amount":  amount.StringFixed(2),
				"limit":   cfg.MaxPerTransaction.StringFixed(2),
			})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "amount exceeds the per-transaction limit",
				"ceiling": CeilingPerTransaction,
				"amount":  amount.StringFixed(2),
				"limit":   cfg.MaxPerTransaction.StringFixed(2),
			})
		}

		spentToday, err := completedToday(db, userID)
		if err != nil {
			log.Printf("[Limits] daily total lookup failed for %s, failing open: %v", userID, err)
			return c.Next()
		}

		if spentToday.Add(amount).GreaterThan(cfg.DailyLimit) {
			logSecurityEvent(c, audit, userID, "CEILING_EXCEEDED", models.SeverityWarning, map[string]any{
				"ceiling":     CeilingDaily,
				"amount":      amount.StringFixed(2),
				"spent_today": spentToday.StringFixed(2),
				"limit":       cfg.DailyLimit.StringFixed(2),
			})
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success":     false,
				"error":       "amount exceeds the daily payment limit",
				"ceiling":     CeilingDaily,
				"amount":      amount.StringFixed(2),
				"spent_today": spentToday.StringFixed(2),
				"limit":       cfg.DailyLimit.StringFixed(2),
			})
		}

		return c.Next()
	}
}

// completedToday sums the user's completed transactions for the
// current calendar day.
func completedToday(db *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var total decimal.NullDecimal
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status = ? AND created_at >= ?",
			userID, models.TransactionCompleted, dayStart).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
