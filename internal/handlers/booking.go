package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/models"
)

// BookingHandler manages the booking and hospital records payments
// settle against.
type BookingHandler struct {
	db *gorm.DB
}

func NewBookingHandler(db *gorm.DB) *BookingHandler {
	return &BookingHandler{db: db}
}

type createHospitalRequest struct {
	Name              string          `json:"name"`
	City              string          `json:"city"`
	ServiceChargeRate decimal.Decimal `json:"service_charge_rate"`
	MinServiceCharge  decimal.Decimal `json:"min_service_charge"`
}

// CreateHospital registers a hospital with its fee configuration.
func (h *BookingHandler) CreateHospital(c *fiber.Ctx) error {
	var req createHospitalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if req.ServiceChargeRate.IsNegative() || req.MinServiceCharge.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "fee configuration must not be negative")
	}

	hospital := models.Hospital{
		Name:              req.Name,
		City:              req.City,
		ServiceChargeRate: req.ServiceChargeRate,
		MinServiceCharge:  req.MinServiceCharge,
		IsActive:          true,
	}
	if err := h.db.Create(&hospital).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"hospital": hospital,
	})
}

type createBookingRequest struct {
	UserID        string          `json:"user_id"`
	HospitalID    string          `json:"hospital_id"`
	ResourceLabel string          `json:"resource_label"`
	ScheduledAt   time.Time       `json:"scheduled_at"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
}

// CreateBooking creates a payable booking in unpaid/active state.
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user_id")
	}
	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid hospital_id")
	}
	if !req.PaymentAmount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "payment_amount must be positive")
	}

	booking := models.Booking{
		UserID:        userID,
		HospitalID:    hospitalID,
		ResourceLabel: req.ResourceLabel,
		ScheduledAt:   req.ScheduledAt,
		PaymentAmount: req.PaymentAmount,
		PaymentStatus: models.BookingUnpaid,
		Status:        models.BookingActive,
	}
	if err := h.db.Create(&booking).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"booking": booking,
	})
}

// GetBooking returns one booking with its hospital.
func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid booking id")
	}

	var booking models.Booking
	if err := h.db.Preload("Hospital").First(&booking, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "booking not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"booking": booking,
	})
}
