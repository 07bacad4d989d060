package models

import (
	"github.com/shopspring/decimal"
)

// Hospital holds the facility record together with its fee
// configuration. ServiceChargeRate is a percentage of the gross
// amount; MinServiceCharge is the floor applied when the percentage
// would undercut it.
type Hospital struct {
	BaseModel
	Name              string          `json:"name"`
	City              string          `json:"city"`
	ServiceChargeRate decimal.Decimal `gorm:"type:decimal(5,2);default:2.50" json:"service_charge_rate"`
	MinServiceCharge  decimal.Decimal `gorm:"type:decimal(12,2);default:10.00" json:"min_service_charge"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`
}
