package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/medipay/internal/config"
	"github.com/example/medipay/internal/models"
)

// stubAnalyzer returns a fixed analysis instead of reading history.
type stubAnalyzer struct {
	analysis *Analysis
}

func (s stubAnalyzer) Analyze(ctx context.Context, txc TransactionContext) *Analysis {
	return s.analysis
}

// recordingGateway tracks whether the pipeline reached the gateway.
type recordingGateway struct {
	charged  bool
	refunded bool
}

func (g *recordingGateway) Charge(ctx context.Context, contact string, amount decimal.Decimal, attemptCount int) (*GatewayResult, error) {
	g.charged = true
	return &GatewayResult{Success: true, GatewayTxnID: "MW2608310000000001"}, nil
}

func (g *recordingGateway) Refund(ctx context.Context, gatewayTxnID string, amount decimal.Decimal) (*GatewayResult, error) {
	g.refunded = true
	return &GatewayResult{Success: true}, nil
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return gdb, mock
}

func flowConfig() *config.Config {
	return &config.Config{
		Currency:         "BDT",
		MinPaymentAmount: decimal.NewFromInt(10),
		MaxPaymentAmount: decimal.NewFromInt(500000),
	}
}

// TestProcessPayment_BlockedRiskNeverReachesGateway locks in the
// ordering guarantee of the pipeline: a BLOCK recommendation aborts
// the attempt before any gateway submission.
func TestProcessPayment_BlockedRiskNeverReachesGateway(t *testing.T) {
	gdb, mock := newMockDB(t)

	bookingID := uuid.New()
	payerID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "hospital_id", "payment_amount", "payment_status", "status"}).
			AddRow(bookingID.String(), payerID.String(), uuid.NewString(), "2500.00", models.BookingUnpaid, models.BookingActive))
	mock.ExpectRollback()

	gateway := &recordingGateway{}
	analyzer := stubAnalyzer{analysis: &Analysis{
		Success:    true,
		RiskScore:  95,
		RiskLevel:  RiskCritical,
		FraudFlags: []string{FlagMultipleFailed, FlagLargeAmount},
		Recommendation: Recommendation{
			Action:               ActionBlock,
			RequiresManualReview: true,
		},
	}}
	svc := NewPaymentService(gdb, flowConfig(), nil, analyzer, NewFeeService(gdb), gateway, NewNotificationService("", ""))

	result := svc.ProcessPayment(context.Background(), bookingID, PaymentPayload{
		Contact:       "01712345678",
		PaymentMethod: "bkash",
	}, payerID, 1, RequestContext{OriginAddress: "103.4.145.10"})

	require.NotNil(t, result.Error)
	assert.Equal(t, "FRAUD_BLOCKED", result.Error.Info.Code)
	assert.Equal(t, ErrKindSecurity, result.Error.Info.Kind)
	assert.False(t, result.Error.CanRetry())
	assert.False(t, gateway.charged, "gateway must never see a blocked payment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestFinancialOutcomeCarriesFraudFlags ensures payment outcome audit
// rows keep the analysis flags so risk reports can group by them.
func TestFinancialOutcomeCarriesFraudFlags(t *testing.T) {
	t.Parallel()

	txn := &models.Transaction{
		UserID:         uuid.New(),
		BookingID:      uuid.New(),
		TransactionRef: "TXN20260831aabbccddee",
		Amount:         decimal.NewFromInt(60000),
		RiskScore:      45,
	}
	flags := []string{FlagLargeAmount, FlagUnusualTime}

	op := financialOutcome(txn, PaymentPayload{
		Contact:       "01712345678",
		PaymentMethod: "bkash",
	}, RequestContext{OriginAddress: "103.4.145.10"}, models.TransactionCompleted, "payment", flags)

	assert.Equal(t, flags, op.FraudFlags)
	assert.Equal(t, "payment", op.OperationType)
	assert.Equal(t, txn.TransactionRef, op.TransactionRef)
	assert.Equal(t, txn.RiskScore, op.RiskScore)
	assert.Equal(t, models.TransactionCompleted, op.Status)
}
