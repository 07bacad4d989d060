package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietSimulator returns a simulator with the transient-fault dice
// disabled and no synthetic delay, so outcomes depend only on the
// contact.
func quietSimulator() *WalletSimulator {
	g := NewWalletSimulator(rand.NewSource(1))
	g.delay = 0
	g.timeoutChance = 0
	g.networkChance = 0
	g.refundChance = 1
	return g
}

func TestCharge_ReservedContactsDecline(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	amount := decimal.NewFromInt(1000)

	cases := map[string]string{
		"01700000001": GatewayCodeInsufficientBalance,
		"01700000002": GatewayCodeInvalidAccount,
		"01700000003": GatewayCodeAccountBlocked,
		"01700000004": GatewayCodeLimitExceeded,
		"01700000005": GatewayCodeServiceUnavailable,
	}

	for contact, wantCode := range cases {
		res, err := g.Charge(context.Background(), contact, amount, 1)
		require.NoError(t, err)
		assert.False(t, res.Success, "contact %s", contact)
		assert.Equal(t, wantCode, res.Code, "contact %s", contact)
		assert.Empty(t, res.GatewayTxnID)
	}
}

func TestCharge_DeclineIsDeterministicAcrossAttempts(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	for attempt := 1; attempt <= 3; attempt++ {
		res, err := g.Charge(context.Background(), "01700000001", decimal.NewFromInt(500), attempt)
		require.NoError(t, err)
		assert.Equal(t, GatewayCodeInsufficientBalance, res.Code)
	}
}

func TestCharge_SuccessEchoesMaskedContact(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	res, err := g.Charge(context.Background(), "01712345678", decimal.NewFromInt(1000), 1)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.GatewayTxnID)
	assert.Equal(t, "017******78", res.MaskedContact)
	assert.Empty(t, res.Code)
}

func TestCharge_TimeoutOnlyOnFirstAttempt(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	g.timeoutChance = 1
	g.networkChance = 0

	res, err := g.Charge(context.Background(), "01712345678", decimal.NewFromInt(1000), 1)
	require.NoError(t, err)
	assert.Equal(t, GatewayCodeTimeout, res.Code)

	res, err = g.Charge(context.Background(), "01712345678", decimal.NewFromInt(1000), 2)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestCharge_NetworkFaultOnlyOnRetries(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	g.networkChance = 1

	res, err := g.Charge(context.Background(), "01712345678", decimal.NewFromInt(1000), 1)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = g.Charge(context.Background(), "01712345678", decimal.NewFromInt(1000), 2)
	require.NoError(t, err)
	assert.Equal(t, GatewayCodeNetworkError, res.Code)
}

func TestCharge_HonorsContextCancellation(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	g.delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, "01712345678", decimal.NewFromInt(1000), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefund_SuccessAndDecline(t *testing.T) {
	t.Parallel()

	g := quietSimulator()
	res, err := g.Refund(context.Background(), "MW2506100000000001", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, res.Success)

	g.refundChance = 0
	res, err = g.Refund(context.Background(), "MW2506100000000001", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, GatewayCodeServiceUnavailable, res.Code)
}
