package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Audit log type tags used by integrity verification.
const (
	AuditTypeFinancial  = "financial"
	AuditTypeSecurity   = "security"
	AuditTypeEncryption = "encryption"
)

// Security event severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// FinancialAuditLog records one financial operation. AuditHash is
// computed over the canonicalized row content at write time and never
// recomputed or mutated afterward.
type FinancialAuditLog struct {
	BaseModel
	UserID         *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	TransactionRef string          `gorm:"index" json:"transaction_ref"`
	OperationType  string          `gorm:"index" json:"operation_type"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	Status         string          `json:"status"`
	OriginAddress  string          `json:"origin_address"`
	MaskedContact  string          `json:"masked_contact"`
	RiskScore      int             `json:"risk_score"`
	FraudFlags     string          `json:"fraud_flags"`
	Details        []byte          `gorm:"type:jsonb" json:"details"`
	AuditHash      string          `json:"audit_hash"`
}

// SecurityAuditLog records an authorization, rate-limit or fraud
// finding event.
type SecurityAuditLog struct {
	BaseModel
	UserID        *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	EventType     string     `gorm:"index" json:"event_type"`
	Severity      string     `gorm:"index" json:"severity"`
	OriginAddress string     `json:"origin_address"`
	UserAgent     string     `json:"user_agent"`
	Details       []byte     `gorm:"type:jsonb" json:"details"`
	AuditHash     string     `json:"audit_hash"`
}

// EncryptionAuditLog records a field masking/unmasking operation.
type EncryptionAuditLog struct {
	BaseModel
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Operation  string     `json:"operation"`
	FieldName  string     `json:"field_name"`
	RecordType string     `json:"record_type"`
	Success    bool       `json:"success"`
	Details    []byte     `gorm:"type:jsonb" json:"details"`
	AuditHash  string     `json:"audit_hash"`
}
