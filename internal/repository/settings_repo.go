package repository

import (
	"context"
	"errors"

	"marketbill/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the financial settings row, falling back to zero VAT and a
// complementary 100% seller share when none has been configured yet.
func (r *SettingsRepository) Get(ctx context.Context) (*model.FinancialSettings, error) {
	var settings model.FinancialSettings
	err := r.db.WithContext(ctx).Order("id ASC").First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.FinancialSettings{
				VATRatePercent:            decimal.Zero,
				SellerSharePercent:        decimal.NewFromInt(100),
				PlatformCommissionPercent: decimal.Zero,
				CommissionMethod:          model.CommissionMethodComplementary,
			}, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.FinancialSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
