package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/utils"
)

// Report types accepted by GenerateReport.
const (
	ReportFinancialSummary = "FINANCIAL_SUMMARY"
	ReportSecuritySummary  = "SECURITY_SUMMARY"
	ReportRiskAnalysis     = "RISK_ANALYSIS"
)

// AuditService owns all writes to the audit tables and exposes
// integrity verification and reporting over them.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// FinancialOperation is the payload for a financial audit record.
type FinancialOperation struct {
	UserID         uuid.UUID
	TransactionRef string
	OperationType  string
	Amount         decimal.Decimal
	PaymentMethod  string
	Status         string
	OriginAddress  string
	Contact        string
	RiskScore      int
	FraudFlags     []string
	Details        map[string]any
}

// SecurityEvent is the payload for a security audit record.
type SecurityEvent struct {
	UserID        uuid.UUID
	EventType     string
	Severity      string
	OriginAddress string
	UserAgent     string
	Details       map[string]any
}

// EncryptionOperation is the payload for an encryption audit record.
type EncryptionOperation struct {
	UserID     uuid.UUID
	Operation  string
	FieldName  string
	RecordType string
	Success    bool
	Details    map[string]any
}

// IntegrityResult reports the outcome of an audit hash verification.
type IntegrityResult struct {
	IsValid        bool   `json:"is_valid"`
	StoredHash     string `json:"stored_hash"`
	CalculatedHash string `json:"calculated_hash"`
}

// FinancialLogFilters narrows a financial log query. Zero values mean
// "no filter".
type FinancialLogFilters struct {
	UserID         uuid.UUID
	TransactionRef string
	OperationType  string
	From           *time.Time
	To             *time.Time
	MinAmount      *decimal.Decimal
	MaxAmount      *decimal.Decimal
	Limit          int
}

// RecordFinancialOperation masks sensitive fields, hashes the
// canonical field set and persists the row. An unknown user id does
// not fail the write; audit completeness wins over referential
// strictness.
func (s *AuditService) RecordFinancialOperation(ctx context.Context, op FinancialOperation) (uuid.UUID, error) {
	details, err := marshalCanonical(op.Details)
	if err != nil {
		return uuid.Nil, fmt.Errorf("canonicalize details: %w", err)
	}

	row := models.FinancialAuditLog{
		UserID:         s.resolveUser(ctx, op.UserID),
		TransactionRef: op.TransactionRef,
		OperationType:  op.OperationType,
		Amount:         op.Amount,
		PaymentMethod:  op.PaymentMethod,
		Status:         op.Status,
		OriginAddress:  op.OriginAddress,
		MaskedContact:  utils.MaskPhone(op.Contact),
		RiskScore:      op.RiskScore,
		FraudFlags:     strings.Join(op.FraudFlags, ","),
		Details:        details,
	}
	row.AuditHash = computeAuditHash(financialHashFields(&row))

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

// RecordSecurityEvent persists a security audit record.
func (s *AuditService) RecordSecurityEvent(ctx context.Context, ev SecurityEvent) (uuid.UUID, error) {
	details, err := marshalCanonical(ev.Details)
	if err != nil {
		return uuid.Nil, fmt.Errorf("canonicalize details: %w", err)
	}

	row := models.SecurityAuditLog{
		UserID:        s.resolveUser(ctx, ev.UserID),
		EventType:     ev.EventType,
		Severity:      ev.Severity,
		OriginAddress: ev.OriginAddress,
		UserAgent:     ev.UserAgent,
		Details:       details,
	}
	row.AuditHash = computeAuditHash(securityHashFields(&row))

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

// RecordEncryptionOperation persists an encryption audit record.
func (s *AuditService) RecordEncryptionOperation(ctx context.Context, op EncryptionOperation) (uuid.UUID, error) {
	details, err := marshalCanonical(op.Details)
	if err != nil {
		return uuid.Nil, fmt.Errorf("canonicalize details: %w", err)
	}

	row := models.EncryptionAuditLog{
		UserID:     s.resolveUser(ctx, op.UserID),
		Operation:  op.Operation,
		FieldName:  op.FieldName,
		RecordType: op.RecordType,
		Success:    op.Success,
		Details:    details,
	}
	row.AuditHash = computeAuditHash(encryptionHashFields(&row))

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

// VerifyIntegrity re-fetches an audit row, recomputes its hash over
// the stored columns and compares against the stored value.
func (s *AuditService) VerifyIntegrity(ctx context.Context, id uuid.UUID, logType string) (*IntegrityResult, error) {
	var stored, calculated string

	switch logType {
	case models.AuditTypeFinancial:
		var row models.FinancialAuditLog
		if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
			return nil, err
		}
		stored = row.AuditHash
		calculated = computeAuditHash(financialHashFields(&row))
	case models.AuditTypeSecurity:
		var row models.SecurityAuditLog
		if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
			return nil, err
		}
		stored = row.AuditHash
		calculated = computeAuditHash(securityHashFields(&row))
	case models.AuditTypeEncryption:
		var row models.EncryptionAuditLog
		if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
			return nil, err
		}
		stored = row.AuditHash
		calculated = computeAuditHash(encryptionHashFields(&row))
	default:
		return nil, fmt.Errorf("unknown audit log type %q", logType)
	}

	return &IntegrityResult{
		IsValid:        stored == calculated,
		StoredHash:     stored,
		CalculatedHash: calculated,
	}, nil
}

// QueryFinancialLogs returns financial audit rows matching the
// filters, newest first.
func (s *AuditService) QueryFinancialLogs(ctx context.Context, f FinancialLogFilters) ([]models.FinancialAuditLog, error) {
	query := s.db.WithContext(ctx).Model(&models.FinancialAuditLog{})

	if f.UserID != uuid.Nil {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.TransactionRef != "" {
		query = query.Where("transaction_ref = ?", f.TransactionRef)
	}
	if f.OperationType != "" {
		query = query.Where("operation_type = ?", f.OperationType)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}
	if f.MinAmount != nil {
		query = query.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		query = query.Where("amount <= ?", *f.MaxAmount)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	var rows []models.FinancialAuditLog
	if err := query.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GenerateReport aggregates audit rows over a date window.
func (s *AuditService) GenerateReport(ctx context.Context, reportType string, from, to *time.Time) (map[string]any, error) {
	switch reportType {
	case ReportFinancialSummary:
		return s.financialSummary(ctx, from, to)
	case ReportSecuritySummary:
		return s.securitySummary(ctx, from, to)
	case ReportRiskAnalysis:
		return s.riskAnalysis(ctx, from, to)
	default:
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}
}

func (s *AuditService) financialSummary(ctx context.Context, from, to *time.Time) (map[string]any, error) {
	var rows []models.FinancialAuditLog
	if err := s.windowed(ctx, &models.FinancialAuditLog{}, from, to).Find(&rows).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Count     int             `json:"count"`
		Total     decimal.Decimal `json:"total"`
		Average   decimal.Decimal `json:"average"`
		Min       decimal.Decimal `json:"min"`
		Max       decimal.Decimal `json:"max"`
		Completed int             `json:"completed"`
		Failed    int             `json:"failed"`
	}

	buckets := map[string]*bucket{}
	for _, row := range rows {
		key := row.OperationType + "/" + row.PaymentMethod
		b, ok := buckets[key]
		if !ok {
			b = &bucket{Min: row.Amount, Max: row.Amount}
			buckets[key] = b
		}
		b.Count++
		b.Total = b.Total.Add(row.Amount)
		if row.Amount.LessThan(b.Min) {
			b.Min = row.Amount
		}
		if row.Amount.GreaterThan(b.Max) {
			b.Max = row.Amount
		}
		switch row.Status {
		case models.TransactionCompleted:
			b.Completed++
		case models.TransactionFailed:
			b.Failed++
		}
	}
	for _, b := range buckets {
		b.Average = b.Total.Div(decimal.NewFromInt(int64(b.Count))).Round(2)
	}

	return map[string]any{
		"report_type": ReportFinancialSummary,
		"total_rows":  len(rows),
		"groups":      buckets,
	}, nil
}

func (s *AuditService) securitySummary(ctx context.Context, from, to *time.Time) (map[string]any, error) {
	var rows []models.SecurityAuditLog
	if err := s.windowed(ctx, &models.SecurityAuditLog{}, from, to).Find(&rows).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Count           int `json:"count"`
		DistinctActors  int `json:"distinct_actors"`
		DistinctOrigins int `json:"distinct_origins"`

		actors  map[string]struct{}
		origins map[string]struct{}
	}

	buckets := map[string]*bucket{}
	for _, row := range rows {
		key := row.EventType + "/" + row.Severity
		b, ok := buckets[key]
		if !ok {
			b = &bucket{actors: map[string]struct{}{}, origins: map[string]struct{}{}}
			buckets[key] = b
		}
		b.Count++
		if row.UserID != nil {
			b.actors[row.UserID.String()] = struct{}{}
		}
		if row.OriginAddress != "" {
			b.origins[row.OriginAddress] = struct{}{}
		}
	}
	for _, b := range buckets {
		b.DistinctActors = len(b.actors)
		b.DistinctOrigins = len(b.origins)
	}

	return map[string]any{
		"report_type": ReportSecuritySummary,
		"total_rows":  len(rows),
		"groups":      buckets,
	}, nil
}

func (s *AuditService) riskAnalysis(ctx context.Context, from, to *time.Time) (map[string]any, error) {
	var rows []models.FinancialAuditLog
	if err := s.windowed(ctx, &models.FinancialAuditLog{}, from, to).Find(&rows).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Count   int             `json:"count"`
		Total   decimal.Decimal `json:"-"`
		Average decimal.Decimal `json:"average_amount"`
	}

	add := func(group map[string]*bucket, key string, amount decimal.Decimal) {
		b, ok := group[key]
		if !ok {
			b = &bucket{}
			group[key] = b
		}
		b.Count++
		b.Total = b.Total.Add(amount)
	}

	byFlagSet := map[string]*bucket{}
	byScore := map[string]*bucket{}
	for _, row := range rows {
		flagKey := row.FraudFlags
		if flagKey == "" {
			flagKey = "none"
		}
		add(byFlagSet, flagKey, row.Amount)
		add(byScore, scoreBand(row.RiskScore), row.Amount)
	}
	for _, group := range []map[string]*bucket{byFlagSet, byScore} {
		for _, b := range group {
			b.Average = b.Total.Div(decimal.NewFromInt(int64(b.Count))).Round(2)
		}
	}

	return map[string]any{
		"report_type":   ReportRiskAnalysis,
		"total_rows":    len(rows),
		"by_flag_set":   byFlagSet,
		"by_score_band": byScore,
	}, nil
}

func scoreBand(score int) string {
	switch {
	case score >= 90:
		return "critical"
	case score >= 75:
		return "high"
	case score >= 50:
		return "medium"
	case score >= 25:
		return "low"
	default:
		return "minimal"
	}
}

func (s *AuditService) windowed(ctx context.Context, model any, from, to *time.Time) *gorm.DB {
	query := s.db.WithContext(ctx).Model(model)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	return query
}

// resolveUser returns a pointer to the user id when the user exists,
// nil otherwise. A missing user never fails an audit write.
func (s *AuditService) resolveUser(ctx context.Context, userID uuid.UUID) *uuid.UUID {
	if userID == uuid.Nil {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		log.Printf("[Audit] user lookup failed for %s, recording without reference: %v", userID, err)
		return nil
	}
	if count == 0 {
		log.Printf("[Audit] user %s not found, recording without reference", userID)
		return nil
	}
	id := userID
	return &id
}

// Hash field builders. Volatile columns (id, created_at, audit_hash)
// are deliberately excluded; changing these sets breaks verification
// of existing rows.

func financialHashFields(row *models.FinancialAuditLog) map[string]string {
	return map[string]string{
		"user_id":         userIDString(row.UserID),
		"transaction_ref": row.TransactionRef,
		"operation_type":  row.OperationType,
		"amount":          row.Amount.StringFixed(2),
		"payment_method":  row.PaymentMethod,
		"status":          row.Status,
		"origin_address":  row.OriginAddress,
		"masked_contact":  row.MaskedContact,
		"risk_score":      strconv.Itoa(row.RiskScore),
		"fraud_flags":     row.FraudFlags,
		"details":         canonicalDetailsString(row.Details),
	}
}

func securityHashFields(row *models.SecurityAuditLog) map[string]string {
	return map[string]string{
		"user_id":        userIDString(row.UserID),
		"event_type":     row.EventType,
		"severity":       row.Severity,
		"origin_address": row.OriginAddress,
		"user_agent":     row.UserAgent,
		"details":        canonicalDetailsString(row.Details),
	}
}

func encryptionHashFields(row *models.EncryptionAuditLog) map[string]string {
	return map[string]string{
		"user_id":     userIDString(row.UserID),
		"operation":   row.Operation,
		"field_name":  row.FieldName,
		"record_type": row.RecordType,
		"success":     strconv.FormatBool(row.Success),
		"details":     canonicalDetailsString(row.Details),
	}
}

func userIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func canonicalDetailsString(raw []byte) string {
	canonical, err := canonicalJSON(raw)
	if err != nil {
		// Hash whatever is stored; a corrupt document should surface
		// as an integrity failure, not a verification error.
		return string(raw)
	}
	return string(canonical)
}
