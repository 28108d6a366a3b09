package repository

import (
	"context"
	"errors"

	"marketbill/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) *RevenueRepository {
	return &RevenueRepository{db: db}
}

// GetOrCreate returns the seller's running revenue ledger row.
func (r *RevenueRepository) GetOrCreate(ctx context.Context, sellerID int64) (*model.SellerRevenue, error) {
	var revenue model.SellerRevenue
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&revenue).Error
	if err == nil {
		return &revenue, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &model.SellerRevenue{SellerID: sellerID, CreditedTotal: decimal.Zero}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seller_id"}},
			DoNothing: true,
		}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&revenue).Error
	return &revenue, err
}

// AddCredited bumps the running credited total inside the caller's
// transaction, in the same unit of work as the wallet credit it mirrors.
func (r *RevenueRepository) AddCredited(ctx context.Context, tx *gorm.DB, sellerID int64, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.SellerRevenue{}).
		Where("seller_id = ?", sellerID).
		Updates(map[string]interface{}{
			"credited_total": gorm.Expr("credited_total + ?", amount),
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		fresh := &model.SellerRevenue{SellerID: sellerID, CreditedTotal: amount}
		return tx.WithContext(ctx).Create(fresh).Error
	}
	return nil
}

// CreditedTotal returns how much revenue share has ever been credited.
func (r *RevenueRepository) CreditedTotal(ctx context.Context, sellerID int64) (decimal.Decimal, error) {
	revenue, err := r.GetOrCreate(ctx, sellerID)
	if err != nil {
		return decimal.Zero, err
	}
	return revenue.CreditedTotal, nil
}
