package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/example/medipay/internal/models"
)

func TestServiceCharge_PercentageOfAmount(t *testing.T) {
	t.Parallel()

	svc := NewFeeService(nil)
	hospital := &models.Hospital{
		ServiceChargeRate: decimal.NewFromFloat(2.5),
		MinServiceCharge:  decimal.NewFromInt(10),
	}

	charge := svc.ServiceCharge(decimal.NewFromInt(10000), hospital)
	assert.True(t, charge.Equal(decimal.NewFromInt(250)), "got %s", charge)
}

func TestServiceCharge_MinimumFloor(t *testing.T) {
	t.Parallel()

	svc := NewFeeService(nil)
	hospital := &models.Hospital{
		ServiceChargeRate: decimal.NewFromFloat(2.5),
		MinServiceCharge:  decimal.NewFromInt(10),
	}

	// 2.5% of 100 is 2.50, below the 10 floor.
	charge := svc.ServiceCharge(decimal.NewFromInt(100), hospital)
	assert.True(t, charge.Equal(decimal.NewFromInt(10)), "got %s", charge)
}

func TestServiceCharge_RoundsToTwoPlaces(t *testing.T) {
	t.Parallel()

	svc := NewFeeService(nil)
	hospital := &models.Hospital{
		ServiceChargeRate: decimal.NewFromFloat(3.33),
		MinServiceCharge:  decimal.Zero,
	}

	charge := svc.ServiceCharge(decimal.NewFromInt(999), hospital)
	assert.True(t, charge.Equal(decimal.NewFromFloat(33.27)), "got %s", charge)
	assert.Equal(t, "33.27", charge.StringFixed(2))
}
