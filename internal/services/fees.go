package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/models"
)

// FeeService resolves per-hospital fee configuration and computes the
// platform service charge for a payment.
type FeeService struct {
	db *gorm.DB
}

func NewFeeService(db *gorm.DB) *FeeService {
	return &FeeService{db: db}
}

// ConfigFor returns the fee configuration row for a hospital.
func (s *FeeService) ConfigFor(ctx context.Context, hospitalID uuid.UUID) (*models.Hospital, error) {
	var hospital models.Hospital
	if err := s.db.WithContext(ctx).First(&hospital, "id = ?", hospitalID).Error; err != nil {
		return nil, err
	}
	if !hospital.IsActive {
		return nil, fmt.Errorf("hospital %s is inactive", hospitalID)
	}
	return &hospital, nil
}

// ServiceCharge computes the platform's cut of a gross amount:
// rate percent of the amount, floored at the hospital's minimum,
// rounded to two decimal places.
func (s *FeeService) ServiceCharge(amount decimal.Decimal, hospital *models.Hospital) decimal.Decimal {
	charge := amount.Mul(hospital.ServiceChargeRate).Div(decimal.NewFromInt(100)).Round(2)
	if charge.LessThan(hospital.MinServiceCharge) {
		charge = hospital.MinServiceCharge
	}
	return charge
}
