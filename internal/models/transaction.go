package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction status values.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
	TransactionRefunded  = "refunded"
)

// Transaction records one payment attempt against a booking. A row is
// created pending inside the enclosing database transaction and moves
// to completed or failed before commit; completed rows are append-only
// except for the refund transition.
type Transaction struct {
	BaseModel
	BookingID       uuid.UUID       `gorm:"type:uuid;index" json:"booking_id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	HospitalID      uuid.UUID       `gorm:"type:uuid;index" json:"hospital_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	ServiceCharge   decimal.Decimal `gorm:"type:decimal(12,2)" json:"service_charge"`
	HospitalAmount  decimal.Decimal `gorm:"type:decimal(12,2)" json:"hospital_amount"`
	PaymentMethod   string          `json:"payment_method"`
	TransactionRef  string          `gorm:"uniqueIndex" json:"transaction_ref"`
	Status          string          `gorm:"index;default:pending" json:"status"`
	MaskedContact   string          `json:"masked_contact"`
	OriginAddress   string          `gorm:"index" json:"origin_address"`
	DeviceSignature string          `gorm:"index" json:"device_signature"`
	GatewayTxnID    string          `gorm:"column:gateway_txn_id" json:"gateway_txn_id"`
	RiskScore       int             `json:"risk_score"`
	PaymentMetadata []byte          `gorm:"type:jsonb" json:"payment_metadata"`
	FailureReason   string          `json:"failure_reason"`
}
