package model

import (
	"time"
)

// ProductStock holds the sellable quantity for a catalog product. Only the
// stock-keeping slice of the catalog lives here; everything else about a
// product is outside the billing core.
type ProductStock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"product_id"`
	SellerID  int64     `gorm:"index;not null" json:"seller_id"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	Version   int       `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ProductStock) TableName() string {
	return "product_stock"
}

const (
	StockMovementReasonSale = "SALE"
)

// StockMovement records each stock decrement. The unique invoice item id is
// what makes the decrement idempotent when the paid-invoice event is
// redelivered.
type StockMovement struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     string    `gorm:"type:varchar(64);index;not null" json:"product_id"`
	InvoiceItemID int64     `gorm:"uniqueIndex;not null" json:"invoice_item_id"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	Reason        string    `gorm:"type:varchar(20);not null" json:"reason"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movement"
}
