package repository

import (
	"context"
	"errors"

	"marketbill/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStockNotEnough  = errors.New("insufficient stock")
)

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) GetByProductID(ctx context.Context, productID string) (*model.ProductStock, error) {
	var stock model.ProductStock
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &stock, nil
}

func (r *StockRepository) Upsert(ctx context.Context, stock *model.ProductStock) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seller_id", "quantity"}),
		}).
		Create(stock).Error
}

// DecrementForSale reduces stock for one sold invoice line, exactly once.
// The movement row's unique invoice item id absorbs event redelivery: when
// the movement already exists nothing is decremented and the call reports
// applied=false.
func (r *StockRepository) DecrementForSale(ctx context.Context, tx *gorm.DB, productID string, invoiceItemID int64, quantity int) (bool, error) {
	movement := &model.StockMovement{
		ProductID:     productID,
		InvoiceItemID: invoiceItemID,
		Quantity:      quantity,
		Reason:        model.StockMovementReasonSale,
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(movement)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	update := tx.WithContext(ctx).
		Model(&model.ProductStock{}).
		Where("product_id = ? AND quantity >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", quantity),
			"version":  gorm.Expr("version + 1"),
		})
	if update.Error != nil {
		return false, update.Error
	}
	if update.RowsAffected == 0 {
		if _, err := r.GetByProductID(ctx, productID); err != nil {
			return false, err
		}
		return false, ErrStockNotEnough
	}
	return true, nil
}
