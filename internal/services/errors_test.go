package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapGatewayError_RetryableCodes(t *testing.T) {
	t.Parallel()

	retryable := map[string]bool{
		GatewayCodeInsufficientBalance: false,
		GatewayCodeInvalidAccount:      false,
		GatewayCodeAccountBlocked:      false,
		GatewayCodeLimitExceeded:       false,
		GatewayCodeServiceUnavailable:  true,
		GatewayCodeTimeout:             true,
		GatewayCodeNetworkError:        true,
	}

	for code, want := range retryable {
		perr := MapGatewayError(&GatewayResult{Code: code, Reason: "test"}, 1)
		assert.Equal(t, want, perr.CanRetry(), "code %s", code)
		assert.Equal(t, ErrKindGateway, perr.Info.Kind, "code %s", code)
		assert.Equal(t, code, perr.Info.Code, "code %s", code)
	}
}

func TestMapGatewayError_UnknownCodeFallsBackToInternal(t *testing.T) {
	t.Parallel()

	perr := MapGatewayError(&GatewayResult{Code: "SOMETHING_NEW", Reason: "?"}, 2)
	assert.Equal(t, ErrInfoInternal.Code, perr.Info.Code)
	assert.False(t, perr.CanRetry())
}

func TestPaymentError_RetryContinuation(t *testing.T) {
	t.Parallel()

	perr := MapGatewayError(&GatewayResult{Code: GatewayCodeTimeout}, 1)
	retry := perr.Retry()
	require.NotNil(t, retry)
	assert.Equal(t, 2, retry.AttemptCount)

	declined := MapGatewayError(&GatewayResult{Code: GatewayCodeAccountBlocked}, 1)
	assert.Nil(t, declined.Retry())
}

func TestPaymentError_BilingualMessages(t *testing.T) {
	t.Parallel()

	for _, info := range []PaymentErrorInfo{
		ErrInfoBookingNotFound,
		ErrInfoDuplicateTransaction,
		ErrInfoBookingCancelled,
		ErrInfoValidationFailed,
		ErrInfoFraudBlocked,
		ErrInfoInternal,
	} {
		assert.NotEmpty(t, info.Message["en"], "code %s", info.Code)
		assert.NotEmpty(t, info.Message["bn"], "code %s", info.Code)
	}
}

func TestPaymentError_ErrorStringCarriesDetail(t *testing.T) {
	t.Parallel()

	perr := NewPaymentError(ErrInfoRevenueConfig, 1, "hospital inactive", nil)
	assert.Equal(t, "REVENUE_CONFIG_FAILED: hospital inactive", perr.Error())

	bare := NewPaymentError(ErrInfoBookingNotFound, 1, "", nil)
	assert.Equal(t, "BOOKING_NOT_FOUND", bare.Error())
}

func TestMapInfrastructureError_HidesDiagnostic(t *testing.T) {
	t.Parallel()

	perr := MapInfrastructureError(errors.New("pq: connection refused"), 3)
	assert.Equal(t, ErrInfoInternal.Code, perr.Info.Code)
	assert.Equal(t, 3, perr.AttemptCount)
	// The user-facing message stays generic; the diagnostic lives in Detail.
	assert.NotContains(t, perr.Info.Message["en"], "pq:")
	assert.Contains(t, perr.Detail, "pq:")
}
