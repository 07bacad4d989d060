package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/medipay/internal/config"
	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/utils"
)

var contactPattern = regexp.MustCompile(`^01[3-9][0-9]{8}$`)

var allowedMethods = map[string]bool{
	"bkash":  true,
	"nagad":  true,
	"rocket": true,
	"upay":   true,
}

// AddonService is an optional chargeable extra attached to a booking
// payment. Eligibility is an age floor on the payer.
type AddonService struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	MinimumAge int             `json:"minimum_age"`
	Surcharge  decimal.Decimal `json:"surcharge"`
}

var addonCatalog = map[string]AddonService{
	"home_sample":       {Code: "home_sample", Name: "Home sample collection", MinimumAge: 0, Surcharge: decimal.NewFromInt(500)},
	"icu_companion":     {Code: "icu_companion", Name: "ICU companion pass", MinimumAge: 18, Surcharge: decimal.NewFromInt(1500)},
	"geriatric_support": {Code: "geriatric_support", Name: "Geriatric support package", MinimumAge: 60, Surcharge: decimal.NewFromInt(1000)},
}

// LookupAddon returns the add-on for a code.
func LookupAddon(code string) (AddonService, bool) {
	addon, ok := addonCatalog[code]
	return addon, ok
}

// PaymentPayload is the caller-supplied payment intent.
type PaymentPayload struct {
	Contact       string `json:"contact"`
	PaymentMethod string `json:"payment_method"`
	AddonCode     string `json:"addon_code,omitempty"`
}

// RequestContext carries the security metadata of the request.
type RequestContext struct {
	OriginAddress   string `json:"origin_address"`
	ClientSignature string `json:"client_signature"`
	SessionID       string `json:"session_id"`
	UserAgent       string `json:"user_agent"`
}

// ProcessResult is the envelope returned for every payment attempt.
type ProcessResult struct {
	Success       bool                `json:"success"`
	Transaction   *models.Transaction `json:"transaction,omitempty"`
	PaymentResult *GatewayResult      `json:"payment_result,omitempty"`
	ReceiptRef    string              `json:"receipt_ref,omitempty"`
	Error         *PaymentError       `json:"-"`
}

// RiskAnalyzer is the contract the orchestrator needs from the fraud
// engine.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, txc TransactionContext) *Analysis
}

// PaymentService orchestrates a payment attempt: it exclusively owns
// Transaction lifecycle writes and runs each attempt inside one atomic
// database transaction spanning validation, risk assessment and the
// gateway call.
type PaymentService struct {
	db      *gorm.DB
	cfg     *config.Config
	audit   *AuditService
	fraud   RiskAnalyzer
	fees    *FeeService
	gateway PaymentGateway
	notify  *NotificationService
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, audit *AuditService, fraud RiskAnalyzer, fees *FeeService, gateway PaymentGateway, notify *NotificationService) *PaymentService {
	return &PaymentService{
		db:      db,
		cfg:     cfg,
		audit:   audit,
		fraud:   fraud,
		fees:    fees,
		gateway: gateway,
		notify:  notify,
	}
}

// ProcessPayment runs one payment attempt against a booking. The
// booking row is locked for the duration, so a concurrent attempt
// observes the first one's paid status instead of double-charging.
// The local transaction commits only after an affirmative gateway
// result inside the same scope.
func (s *PaymentService) ProcessPayment(ctx context.Context, bookingID uuid.UUID, payload PaymentPayload, payerID uuid.UUID, attemptCount int, reqCtx RequestContext) (result *ProcessResult) {
	if attemptCount < 1 {
		attemptCount = 1
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Payment] panic during attempt %d for booking %s: %v", attemptCount, bookingID, r)
			result = &ProcessResult{Error: MapInfrastructureError(fmt.Errorf("panic: %v", r), attemptCount)}
		}
	}()

	var (
		txn          models.Transaction
		confirmation PaymentConfirmation
		gatewayRes   *GatewayResult
		gatewayTried bool
		fraudFlags   []string
	)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Mask contact data before anything else touches it.
		maskedContact := utils.MaskPhone(payload.Contact)
		if s.audit != nil {
			if _, err := s.audit.RecordEncryptionOperation(ctx, EncryptionOperation{
				UserID:     payerID,
				Operation:  "mask",
				FieldName:  "contact",
				RecordType: "transaction",
				Success:    true,
			}); err != nil {
				log.Printf("[Payment] encryption audit failed: %v", err)
			}
		}

		// Load and lock the booking.
		var booking models.Booking
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewPaymentError(ErrInfoBookingNotFound, attemptCount, "", nil)
			}
			return fmt.Errorf("load booking: %w", err)
		}
		if booking.PaymentStatus == models.BookingPaid {
			return NewPaymentError(ErrInfoDuplicateTransaction, attemptCount, "", map[string]any{
				"transaction_ref": booking.TransactionRef,
			})
		}
		if booking.Status == models.BookingCancelled {
			return NewPaymentError(ErrInfoBookingCancelled, attemptCount, "", nil)
		}

		amount := booking.PaymentAmount
		var addon *AddonService

		// Optional add-on: age-gated, surcharge added to the gross.
		if payload.AddonCode != "" {
			found, ok := LookupAddon(payload.AddonCode)
			if !ok {
				return NewPaymentError(ErrInfoAddonIneligible, attemptCount, "",
					map[string]any{"addon_code": payload.AddonCode, "reason": "unknown add-on"})
			}
			var payer models.User
			if err := tx.First(&payer, "id = ?", payerID).Error; err != nil {
				return fmt.Errorf("load payer: %w", err)
			}
			if payer.Age < found.MinimumAge {
				return NewPaymentError(ErrInfoAddonIneligible, attemptCount, "",
					map[string]any{"addon_code": found.Code, "minimum_age": found.MinimumAge})
			}
			addon = &found
			amount = amount.Add(found.Surcharge)
		}

		if verrs := validatePayload(payload, amount); len(verrs) > 0 {
			return NewPaymentError(ErrInfoValidationFailed, attemptCount, "",
				map[string]any{"errors": verrs})
		}

		// Risk assessment. Engine failure degrades to zero risk.
		analysis := s.fraud.Analyze(ctx, TransactionContext{
			UserID:          payerID,
			Amount:          amount,
			Contact:         payload.Contact,
			OriginAddress:   reqCtx.OriginAddress,
			DeviceSignature: reqCtx.ClientSignature,
			SessionID:       reqCtx.SessionID,
		})
		if !analysis.Success {
			log.Printf("[Payment] fraud analysis unavailable for booking %s, proceeding with zero risk", bookingID)
		}
		fraudFlags = analysis.FraudFlags

		switch analysis.Recommendation.Action {
		case ActionBlock:
			s.recordSecurityEvent(ctx, payerID, "PAYMENT_BLOCKED", models.SeverityCritical, reqCtx, map[string]any{
				"booking_id": bookingID.String(),
				"risk_score": analysis.RiskScore,
				"risk_level": analysis.RiskLevel,
			})
			return NewPaymentError(ErrInfoFraudBlocked, attemptCount, "", map[string]any{
				"risk_level": analysis.RiskLevel,
			})
		case ActionChallenge:
			// Extension point: a verification step can be inserted here
			// before submission without reshaping the pipeline.
			s.recordSecurityEvent(ctx, payerID, "PAYMENT_CHALLENGED", models.SeverityHigh, reqCtx, map[string]any{
				"booking_id": bookingID.String(),
				"risk_score": analysis.RiskScore,
				"risk_level": analysis.RiskLevel,
			})
		}

		if amount.LessThan(s.cfg.MinPaymentAmount) || amount.GreaterThan(s.cfg.MaxPaymentAmount) {
			return NewPaymentError(ErrInfoValidationFailed, attemptCount, "",
				map[string]any{"errors": []string{fmt.Sprintf("amount must be between %s and %s",
					s.cfg.MinPaymentAmount.StringFixed(2), s.cfg.MaxPaymentAmount.StringFixed(2))}})
		}

		// Revenue distribution.
		hospital, err := s.fees.ConfigFor(ctx, booking.HospitalID)
		if err != nil {
			return NewPaymentError(ErrInfoRevenueConfig, attemptCount, err.Error(), nil)
		}
		serviceCharge := s.fees.ServiceCharge(amount, hospital)
		hospitalAmount := amount.Sub(serviceCharge)

		ref, err := generateTransactionRef()
		if err != nil {
			return fmt.Errorf("generate transaction ref: %w", err)
		}

		metadata := map[string]any{
			"masked_contact": maskedContact,
			"risk_score":     analysis.RiskScore,
			"risk_level":     analysis.RiskLevel,
			"fraud_flags":    analysis.FraudFlags,
			"session_id":     reqCtx.SessionID,
		}
		if addon != nil {
			metadata["addon"] = map[string]any{
				"code":      addon.Code,
				"name":      addon.Name,
				"surcharge": addon.Surcharge.StringFixed(2),
			}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return NewPaymentError(ErrInfoDataProcessing, attemptCount, err.Error(), nil)
		}

		txn = models.Transaction{
			BookingID:       booking.ID,
			UserID:          payerID,
			HospitalID:      booking.HospitalID,
			Amount:          amount,
			ServiceCharge:   serviceCharge,
			HospitalAmount:  hospitalAmount,
			PaymentMethod:   payload.PaymentMethod,
			TransactionRef:  ref,
			Status:          models.TransactionPending,
			MaskedContact:   maskedContact,
			OriginAddress:   reqCtx.OriginAddress,
			DeviceSignature: reqCtx.ClientSignature,
			RiskScore:       analysis.RiskScore,
			PaymentMetadata: metadataJSON,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		// Gateway call happens inside the transaction scope on
		// purpose: commit only after an affirmative gateway result.
		gatewayTried = true
		gatewayRes, err = s.gateway.Charge(ctx, payload.Contact, amount, attemptCount)
		if err != nil {
			return fmt.Errorf("gateway charge: %w", err)
		}
		if !gatewayRes.Success {
			return MapGatewayError(gatewayRes, attemptCount)
		}

		if err := tx.Model(&txn).Updates(map[string]any{
			"status":         models.TransactionCompleted,
			"gateway_txn_id": gatewayRes.GatewayTxnID,
		}).Error; err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}
		txn.Status = models.TransactionCompleted
		txn.GatewayTxnID = gatewayRes.GatewayTxnID

		if err := tx.Model(&booking).Updates(map[string]any{
			"payment_status":  models.BookingPaid,
			"payment_method":  payload.PaymentMethod,
			"transaction_ref": ref,
		}).Error; err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		patientName := ""
		var payer models.User
		if err := tx.First(&payer, "id = ?", payerID).Error; err == nil {
			patientName = payer.FirstName + " " + payer.LastName
		}

		confirmation = PaymentConfirmation{
			TransactionRef: ref,
			HospitalName:   hospital.Name,
			ResourceLabel:  booking.ResourceLabel,
			PatientName:    patientName,
			MaskedContact:  maskedContact,
			Amount:         amount,
			ServiceCharge:  serviceCharge,
			Currency:       s.cfg.Currency,
			PaymentMethod:  payload.PaymentMethod,
		}
		return nil
	})

	if txErr != nil {
		return s.failureResult(ctx, txErr, attemptCount, &txn, payload, reqCtx, gatewayTried, fraudFlags)
	}

	s.recordFinancialOutcome(ctx, &txn, payload, reqCtx, models.TransactionCompleted, "payment", fraudFlags)

	receipt := BuildReceipt(confirmation)

	// Post-commit side effects are fire-and-forget; their failures
	// never surface as transaction failure.
	go func(c PaymentConfirmation, r Receipt) {
		if err := s.notify.SendPaymentConfirmation(c); err != nil {
			log.Printf("[Payment] confirmation notification failed for %s: %v", c.TransactionRef, err)
		}
		if err := s.notify.SendReceipt(r); err != nil {
			log.Printf("[Payment] receipt delivery failed for %s: %v", r.ReceiptRef, err)
		}
	}(confirmation, receipt)

	txnCopy := txn
	return &ProcessResult{
		Success:       true,
		Transaction:   &txnCopy,
		PaymentResult: gatewayRes,
		ReceiptRef:    receipt.ReceiptRef,
	}
}

// failureResult translates a rolled-back attempt into the structured
// envelope. Gateway failures leave behind a failed transaction row and
// a failed financial audit record; aborts before submission do not.
func (s *PaymentService) failureResult(ctx context.Context, txErr error, attemptCount int, txn *models.Transaction, payload PaymentPayload, reqCtx RequestContext, gatewayTried bool, fraudFlags []string) *ProcessResult {
	var perr *PaymentError
	if !errors.As(txErr, &perr) {
		log.Printf("[Payment] attempt %d failed: %v", attemptCount, txErr)
		perr = MapInfrastructureError(txErr, attemptCount)
	}

	if gatewayTried && perr.Info.Kind == ErrKindGateway && txn.TransactionRef != "" {
		// The pending row was rolled back with everything else;
		// persist the terminal failed attempt so history-based fraud
		// rules can see it.
		failed := *txn
		failed.ID = uuid.Nil
		failed.Status = models.TransactionFailed
		failed.FailureReason = perr.Info.Code
		if err := s.db.WithContext(ctx).Create(&failed).Error; err != nil {
			log.Printf("[Payment] failed to persist failed attempt %s: %v", txn.TransactionRef, err)
		} else {
			*txn = failed
		}
		s.recordFinancialOutcome(ctx, txn, payload, reqCtx, models.TransactionFailed, "payment", fraudFlags)
	}

	return &ProcessResult{Error: perr}
}

// RefundResult is returned by Refund.
type RefundResult struct {
	Success     bool                `json:"success"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Error       *PaymentError       `json:"-"`
}

// Refund reverses a completed transaction. The refund amount may not
// exceed the original; nothing mutates before that check passes.
func (s *PaymentService) Refund(ctx context.Context, transactionID uuid.UUID, amount decimal.Decimal, reason string) *RefundResult {
	var txn models.Transaction

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewPaymentError(ErrInfoRefundNotAllowed, 0, "transaction not found", nil)
			}
			return fmt.Errorf("load transaction: %w", err)
		}
		if txn.Status != models.TransactionCompleted {
			return NewPaymentError(ErrInfoRefundNotAllowed, 0, "", map[string]any{
				"status": txn.Status,
			})
		}
		if amount.GreaterThan(txn.Amount) {
			return NewPaymentError(ErrInfoRefundExceedsAmount, 0, "", map[string]any{
				"original_amount": txn.Amount.StringFixed(2),
				"refund_amount":   amount.StringFixed(2),
			})
		}

		res, err := s.gateway.Refund(ctx, txn.GatewayTxnID, amount)
		if err != nil {
			return fmt.Errorf("gateway refund: %w", err)
		}
		if !res.Success {
			return NewPaymentError(ErrInfoRefundDeclined, 0, res.Reason, map[string]any{
				"gateway_code": res.Code,
			})
		}

		if err := tx.Model(&txn).Update("status", models.TransactionRefunded).Error; err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		txn.Status = models.TransactionRefunded

		if err := tx.Model(&models.Booking{}).
			Where("id = ?", txn.BookingID).
			Update("status", models.BookingCancelled).Error; err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		return nil
	})

	if txErr != nil {
		var perr *PaymentError
		if !errors.As(txErr, &perr) {
			log.Printf("[Payment] refund of %s failed: %v", transactionID, txErr)
			perr = MapInfrastructureError(txErr, 0)
		}
		return &RefundResult{Error: perr}
	}

	if s.audit != nil {
		if _, err := s.audit.RecordFinancialOperation(ctx, FinancialOperation{
			UserID:         txn.UserID,
			TransactionRef: txn.TransactionRef,
			OperationType:  "refund",
			Amount:         amount,
			PaymentMethod:  txn.PaymentMethod,
			Status:         models.TransactionRefunded,
			Contact:        txn.MaskedContact,
			RiskScore:      txn.RiskScore,
			Details:        map[string]any{"reason": reason},
		}); err != nil {
			log.Printf("[Payment] refund audit failed for %s: %v", txn.TransactionRef, err)
		}
	}

	txnCopy := txn
	return &RefundResult{Success: true, Transaction: &txnCopy}
}

func (s *PaymentService) recordFinancialOutcome(ctx context.Context, txn *models.Transaction, payload PaymentPayload, reqCtx RequestContext, status, operation string, fraudFlags []string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.RecordFinancialOperation(ctx, financialOutcome(txn, payload, reqCtx, status, operation, fraudFlags)); err != nil {
		log.Printf("[Payment] financial audit failed for %s: %v", txn.TransactionRef, err)
	}
}

// financialOutcome shapes the audit payload for a payment outcome. The
// fraud flags travel with the row so risk reports can group by them.
func financialOutcome(txn *models.Transaction, payload PaymentPayload, reqCtx RequestContext, status, operation string, fraudFlags []string) FinancialOperation {
	return FinancialOperation{
		UserID:         txn.UserID,
		TransactionRef: txn.TransactionRef,
		OperationType:  operation,
		Amount:         txn.Amount,
		PaymentMethod:  payload.PaymentMethod,
		Status:         status,
		OriginAddress:  reqCtx.OriginAddress,
		Contact:        payload.Contact,
		RiskScore:      txn.RiskScore,
		FraudFlags:     fraudFlags,
		Details: map[string]any{
			"booking_id":     txn.BookingID.String(),
			"gateway_txn_id": txn.GatewayTxnID,
			"failure_reason": txn.FailureReason,
		},
	}
}

func (s *PaymentService) recordSecurityEvent(ctx context.Context, userID uuid.UUID, eventType, severity string, reqCtx RequestContext, details map[string]any) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.RecordSecurityEvent(ctx, SecurityEvent{
		UserID:        userID,
		EventType:     eventType,
		Severity:      severity,
		OriginAddress: reqCtx.OriginAddress,
		UserAgent:     reqCtx.UserAgent,
		Details:       details,
	}); err != nil {
		log.Printf("[Payment] security audit failed: %v", err)
	}
}

// validatePayload returns itemized validation failures for the payment
// intent.
func validatePayload(payload PaymentPayload, amount decimal.Decimal) []string {
	var errs []string
	if payload.Contact == "" {
		errs = append(errs, "contact is required")
	} else if !contactPattern.MatchString(payload.Contact) {
		errs = append(errs, "contact must be a valid mobile number (01XXXXXXXXX)")
	}
	if payload.PaymentMethod == "" {
		errs = append(errs, "payment_method is required")
	} else if !allowedMethods[payload.PaymentMethod] {
		errs = append(errs, fmt.Sprintf("payment_method %q is not supported", payload.PaymentMethod))
	}
	if !amount.IsPositive() {
		errs = append(errs, "amount must be positive")
	}
	return errs
}

// generateTransactionRef builds a collision-resistant, non-guessable
// reference: date prefix plus 10 random bytes.
func generateTransactionRef() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("TXN%s%s", time.Now().Format("20060102"), hex.EncodeToString(buf)), nil
}
