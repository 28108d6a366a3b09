package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Platform commission calculation methods. Complementary treats the seller
// share percentage as final; DeductFromSeller additionally subtracts the
// platform commission from the seller's cut.
const (
	CommissionMethodComplementary    = "COMPLEMENTARY"
	CommissionMethodDeductFromSeller = "DEDUCT_FROM_SELLER"
)

// FinancialSettings is the platform-wide VAT and revenue-share configuration.
// A single row, read at settlement time.
type FinancialSettings struct {
	ID                        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VATRatePercent            decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"vat_rate_percent"`
	SellerSharePercent        decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"seller_share_percent"`
	PlatformCommissionPercent decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"platform_commission_percent"`
	CommissionMethod          string          `gorm:"type:varchar(20);not null" json:"commission_method"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FinancialSettings) TableName() string {
	return "financial_settings"
}
