package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daytimeContext(amount int64) TransactionContext {
	return TransactionContext{
		Amount:        decimal.NewFromInt(amount),
		OriginAddress: "103.4.145.22",
		At:            time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local),
	}
}

func TestEvaluateRules_CleanTransactionScoresZero(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	txc := daytimeContext(1000)
	txc.DeviceSignature = "dev-1"

	score, flags, _ := evaluateRules(rules, txc, historySnapshot{
		HasHistory:  true,
		KnownDevice: true,
	})

	assert.Equal(t, 0, score)
	assert.Empty(t, flags)
}

func TestEvaluateRules_LargeAmountAlwaysFlags(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	txc := daytimeContext(60000)

	score, flags, details := evaluateRules(rules, txc, historySnapshot{})

	assert.Contains(t, flags, FlagLargeAmount)
	assert.Equal(t, rules.LargeAmountWeight, score)
	require.NotEmpty(t, details)
}

func TestEvaluateRules_MonotonicWithMoreTriggers(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	txc := daytimeContext(60000)

	base, _, _ := evaluateRules(rules, txc, historySnapshot{})

	withBurst, _, _ := evaluateRules(rules, txc, historySnapshot{
		CountLast5Min: rules.BurstMaxTransactions + 1,
	})
	assert.Greater(t, withBurst, base)

	withBurstAndFailed, _, _ := evaluateRules(rules, txc, historySnapshot{
		CountLast5Min:   rules.BurstMaxTransactions + 1,
		FailedLast30Min: rules.FailedMaxAttempts,
	})
	assert.Greater(t, withBurstAndFailed, withBurst)
}

func TestEvaluateRules_AboveAverageNeedsHistory(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	txc := daytimeContext(30000)

	_, flags, _ := evaluateRules(rules, txc, historySnapshot{})
	assert.NotContains(t, flags, FlagAboveAverageAmount)

	_, flags, _ = evaluateRules(rules, txc, historySnapshot{
		HasHistory:       true,
		AverageAmount30d: decimal.NewFromInt(1000),
	})
	assert.Contains(t, flags, FlagAboveAverageAmount)
}

func TestEvaluateRules_UnusualTimeWindow(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()

	for hour, want := range map[int]bool{1: false, 2: true, 4: true, 5: true, 6: false, 14: false} {
		txc := daytimeContext(1000)
		txc.At = time.Date(2025, 6, 10, hour, 30, 0, 0, time.Local)

		_, flags, _ := evaluateRules(rules, txc, historySnapshot{})
		if want {
			assert.Contains(t, flags, FlagUnusualTime, "hour %d", hour)
		} else {
			assert.NotContains(t, flags, FlagUnusualTime, "hour %d", hour)
		}
	}
}

func TestEvaluateRules_NewDeviceOnlyWithHistory(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	txc := daytimeContext(1000)
	txc.DeviceSignature = "dev-fresh"

	// First-ever transaction: a new device is expected, not suspicious.
	_, flags, _ := evaluateRules(rules, txc, historySnapshot{})
	assert.NotContains(t, flags, FlagNewDevice)

	_, flags, _ = evaluateRules(rules, txc, historySnapshot{HasHistory: true})
	assert.Contains(t, flags, FlagNewDevice)
}

func TestRiskLevel_StepFunction(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()

	assert.Equal(t, RiskMinimal, riskLevel(rules, 0))
	assert.Equal(t, RiskMinimal, riskLevel(rules, 24))
	assert.Equal(t, RiskLow, riskLevel(rules, 25))
	assert.Equal(t, RiskMedium, riskLevel(rules, 50))
	assert.Equal(t, RiskHigh, riskLevel(rules, 75))
	assert.Equal(t, RiskCritical, riskLevel(rules, 90))
	assert.Equal(t, RiskCritical, riskLevel(rules, 100))
}

func TestRecommend_LevelMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Recommendation{Action: ActionBlock, RequiresManualReview: true}, recommend(RiskCritical, nil))
	assert.Equal(t, Recommendation{Action: ActionChallenge, RequiresManualReview: true}, recommend(RiskHigh, nil))
	assert.Equal(t, Recommendation{Action: ActionMonitor}, recommend(RiskMedium, nil))
	assert.Equal(t, Recommendation{Action: ActionAllow}, recommend(RiskLow, nil))
	assert.Equal(t, Recommendation{Action: ActionAllow}, recommend(RiskMinimal, nil))
}

func TestRecommend_FailedAttemptsForceBlock(t *testing.T) {
	t.Parallel()

	rec := recommend(RiskMinimal, []string{FlagMultipleFailed})
	assert.Equal(t, ActionBlock, rec.Action)
	assert.True(t, rec.RequiresManualReview)
}

func TestRecommend_SuspiciousOriginForcesAtLeastChallenge(t *testing.T) {
	t.Parallel()

	rec := recommend(RiskMinimal, []string{FlagSuspiciousOrigin})
	assert.Equal(t, ActionChallenge, rec.Action)

	rec = recommend(RiskMedium, []string{FlagSuspiciousOrigin})
	assert.Equal(t, ActionChallenge, rec.Action)

	// A block is never downgraded.
	rec = recommend(RiskCritical, []string{FlagSuspiciousOrigin})
	assert.Equal(t, ActionBlock, rec.Action)
}

func TestSuspiciousOrigin(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"127.0.0.1":       true,
		"10.0.0.5":        true,
		"192.168.1.20":    true,
		"169.254.10.1":    true,
		"0.0.0.0":         true,
		"255.255.255.255": true,
		"not-an-ip":       true,
		"103.4.145.22":    false,
		"8.8.8.8":         false,
		"":                false,
	}

	for address, want := range cases {
		assert.Equal(t, want, suspiciousOrigin(address), "address %q", address)
	}
}

func TestFraudRules_ValidateThresholds(t *testing.T) {
	t.Parallel()

	rules := DefaultFraudRules()
	require.NoError(t, rules.Validate())

	rules.MediumThreshold = rules.HighThreshold
	assert.Error(t, rules.Validate())

	rules = DefaultFraudRules()
	rules.CriticalThreshold = 101
	assert.Error(t, rules.Validate())
}

func TestUpdateRules_RejectsInvalidAndKeepsActive(t *testing.T) {
	t.Parallel()

	svc := NewFraudService(nil, nil)

	bad := DefaultFraudRules()
	bad.LowThreshold = 80
	require.Error(t, svc.UpdateRules(bad))
	assert.Equal(t, DefaultFraudRules(), svc.Rules())

	tuned := DefaultFraudRules()
	tuned.LargeAmountWeight = 40
	require.NoError(t, svc.UpdateRules(tuned))
	assert.Equal(t, 40, svc.Rules().LargeAmountWeight)
}
