package services

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePayload_CleanPayloadPasses(t *testing.T) {
	t.Parallel()

	errs := validatePayload(PaymentPayload{
		Contact:       "01712345678",
		PaymentMethod: "bkash",
	}, decimal.NewFromInt(1000))

	assert.Empty(t, errs)
}

func TestValidatePayload_ItemizedErrors(t *testing.T) {
	t.Parallel()

	errs := validatePayload(PaymentPayload{
		Contact:       "12345",
		PaymentMethod: "paypal",
	}, decimal.Zero)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "contact")
	assert.Contains(t, errs[1], "payment_method")
	assert.Contains(t, errs[2], "amount")
}

func TestValidatePayload_ContactFormat(t *testing.T) {
	t.Parallel()

	amount := decimal.NewFromInt(100)

	cases := map[string]bool{
		"01712345678":  true,
		"01898765432":  true,
		"01212345678":  false, // 012 is not an operator prefix
		"0171234567":   false, // too short
		"017123456789": false, // too long
		"+8801712345":  false,
	}

	for contact, valid := range cases {
		errs := validatePayload(PaymentPayload{Contact: contact, PaymentMethod: "nagad"}, amount)
		if valid {
			assert.Empty(t, errs, "contact %s", contact)
		} else {
			assert.NotEmpty(t, errs, "contact %s", contact)
		}
	}
}

func TestGenerateTransactionRef_FormatAndUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref, err := generateTransactionRef()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "TXN"))
		assert.Len(t, ref, 3+8+20)
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestLookupAddon(t *testing.T) {
	t.Parallel()

	addon, ok := LookupAddon("geriatric_support")
	require.True(t, ok)
	assert.Equal(t, 60, addon.MinimumAge)
	assert.True(t, addon.Surcharge.IsPositive())

	_, ok = LookupAddon("spa_day")
	assert.False(t, ok)
}
