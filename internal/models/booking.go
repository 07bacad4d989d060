package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking payment_status values.
const (
	BookingUnpaid = "unpaid"
	BookingPaid   = "paid"
)

// Booking status values.
const (
	BookingActive    = "active"
	BookingCancelled = "cancelled"
)

// Booking is the payable unit a transaction settles. Once payment
// status reaches paid the row is treated as immutable except for the
// refund-driven cancellation.
type Booking struct {
	BaseModel
	UserID         uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	User           *User           `json:"user,omitempty"`
	HospitalID     uuid.UUID       `gorm:"type:uuid;index" json:"hospital_id"`
	Hospital       *Hospital       `json:"hospital,omitempty"`
	ResourceLabel  string          `json:"resource_label"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	PaymentAmount  decimal.Decimal `gorm:"type:decimal(12,2)" json:"payment_amount"`
	PaymentStatus  string          `gorm:"index;default:unpaid" json:"payment_status"`
	Status         string          `gorm:"index;default:active" json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionRef string          `gorm:"column:transaction_ref" json:"transaction_ref"`
}
