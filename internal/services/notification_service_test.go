package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1000", "BDT", "1,000.00 BDT"},
		{"1234567.89", "BDT", "1,234,567.89 BDT"},
		{"999.5", "BDT", "999.50 BDT"},
		{"10", "", "10.00 BDT"},
		{"-2500", "BDT", "-2,500.00 BDT"},
		{"0", "BDT", "0.00 BDT"},
	}

	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.amount)
		assert.Equal(t, tc.want, FormatPrice(amount, tc.currency), "amount %s", tc.amount)
	}
}

func TestBuildReceipt(t *testing.T) {
	t.Parallel()

	receipt := BuildReceipt(PaymentConfirmation{
		TransactionRef: "TXN20260830abc",
		HospitalName:   "City Care",
		Amount:         decimal.NewFromInt(2500),
		Currency:       "BDT",
		PatientName:    "Rahim Uddin",
	})

	assert.Equal(t, "RCPT-TXN20260830abc", receipt.ReceiptRef)
	assert.Equal(t, "TXN20260830abc", receipt.TransactionRef)
	assert.Equal(t, "City Care", receipt.HospitalName)
	assert.Equal(t, "Rahim Uddin", receipt.IssuedTo)
}
