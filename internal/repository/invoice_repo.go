package repository

import (
	"context"
	"errors"
	"time"

	"marketbill/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrOptimisticLock  = errors.New("concurrent modification, please retry")
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Transactions").
		Where("number = ?", number).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByNumberForUpdate loads the full aggregate under a row lock. Items and
// transactions are loaded after the lock is taken so the aggregate cannot be
// mutated underneath a settlement.
func (r *InvoiceRepository) GetByNumberForUpdate(ctx context.Context, tx *gorm.DB, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("number = ?", number).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&invoice.Transactions).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Save persists the aggregate: invoice columns through a version-guarded
// update, new items and transactions through inserts, changed transactions
// through updates. Must run inside the caller's transaction.
func (r *InvoiceRepository) Save(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	result := tx.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]interface{}{
			"status":             invoice.Status,
			"due_date":           invoice.DueDate,
			"subtotal":           invoice.Subtotal,
			"discount_total":     invoice.DiscountTotal,
			"tax_amount":         invoice.TaxAmount,
			"adjustment_amount":  invoice.AdjustmentAmount,
			"grand_total":        invoice.GrandTotal,
			"paid_amount":        invoice.PaidAmount,
			"outstanding_amount": invoice.OutstandingAmount,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	invoice.Version++

	for i := range invoice.Items {
		if invoice.Items[i].ID != 0 {
			continue
		}
		invoice.Items[i].InvoiceID = invoice.ID
		if err := tx.WithContext(ctx).Create(&invoice.Items[i]).Error; err != nil {
			return err
		}
	}
	for i := range invoice.Transactions {
		txn := &invoice.Transactions[i]
		txn.InvoiceID = invoice.ID
		if txn.ID == 0 {
			if err := tx.WithContext(ctx).Create(txn).Error; err != nil {
				return err
			}
		} else {
			if err := tx.WithContext(ctx).Save(txn).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Mutate runs fn against a freshly locked aggregate and saves the result, all
// in one database transaction. This is the only way service code changes an
// existing invoice, so lost updates cannot happen between load and save.
func (r *InvoiceRepository) Mutate(ctx context.Context, number string, fn func(tx *gorm.DB, invoice *model.Invoice) error) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, err = r.GetByNumberForUpdate(ctx, tx, number)
		if err != nil {
			return err
		}
		if err := fn(tx, invoice); err != nil {
			return err
		}
		return r.Save(ctx, tx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *InvoiceRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	var invoices []*model.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Items").
		Preload("Transactions").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&invoices).Error

	return invoices, total, err
}

// ListPaidBySeller returns paid invoices carrying at least one product line of
// the given seller, for revenue-share reporting.
func (r *InvoiceRepository) ListPaidBySeller(ctx context.Context, sellerID int64) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Joins("JOIN invoice_item ON invoice_item.invoice_id = invoice.id").
		Where("invoice.status = ? AND invoice_item.seller_id = ? AND invoice_item.item_type = ?",
			model.InvoiceStatusPaid, sellerID, model.InvoiceItemTypeProduct).
		Group("invoice.id").
		Find(&invoices).Error
	return invoices, err
}

// MarkOverdue flips unpaid invoices past their due date to Overdue. Returns
// the number of invoices swept.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, now time.Time, limit int) (int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]string{model.InvoiceStatusPending, model.InvoiceStatusPartiallyPaid}, now).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	result := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id IN ? AND status IN ?", ids,
			[]string{model.InvoiceStatusPending, model.InvoiceStatusPartiallyPaid}).
		Updates(map[string]interface{}{
			"status":  model.InvoiceStatusOverdue,
			"version": gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

// GetByTransactionReference finds the invoice owning a gateway payment
// attempt, for verification callbacks that only carry the gateway reference.
func (r *InvoiceRepository) GetByTransactionReference(ctx context.Context, gateway, reference string) (*model.Invoice, error) {
	var txn model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND reference = ?", gateway, reference).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	var invoice model.Invoice
	err = r.db.WithContext(ctx).
		Preload("Items").
		Preload("Transactions").
		Where("id = ?", txn.InvoiceID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}
