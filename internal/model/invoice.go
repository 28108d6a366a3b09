package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"marketbill/pkg/money"
)

// ============================================================================
// Invoice status constants
// ============================================================================

const (
	InvoiceStatusDraft         = "DRAFT"
	InvoiceStatusPending       = "PENDING"
	InvoiceStatusPartiallyPaid = "PARTIALLY_PAID"
	InvoiceStatusPaid          = "PAID"
	InvoiceStatusOverdue       = "OVERDUE"
	InvoiceStatusCancelled     = "CANCELLED"
)

const (
	InvoiceItemTypeProduct    = "PRODUCT"
	InvoiceItemTypeService    = "SERVICE"
	InvoiceItemTypeAdjustment = "ADJUSTMENT"
)

var (
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")
	ErrInvalidDiscount       = errors.New("discount must be between zero and the line subtotal")
	ErrTaxAlreadyApplied     = errors.New("tax has already been applied")
	ErrTransactionNotFound   = errors.New("payment transaction not found")
	ErrTransactionFinalized  = errors.New("payment transaction is already in a terminal state")
	ErrInvalidTransition     = errors.New("invalid payment transaction status transition")
	ErrInvoiceNotCancellable = errors.New("invoice cannot be cancelled in its current state")
	ErrInvoiceAlreadySettled = errors.New("invoice is already settled")
)

// ============================================================================
// Invoice aggregate root
// ============================================================================

// Invoice is a billable document. It owns its line items and payment
// transactions; every mutation goes through the aggregate so the derived
// totals and status stay consistent:
//
//	GrandTotal  = Subtotal - DiscountTotal + TaxAmount + AdjustmentAmount
//	PaidAmount  = sum of Succeeded transaction amounts
//	Outstanding = GrandTotal - PaidAmount
//	Status      = PAID iff Outstanding <= 0 (for a non-zero GrandTotal)
type Invoice struct {
	ID                int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	Number            string               `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`
	UserID            int64                `gorm:"index;not null" json:"user_id"`
	Currency          string               `gorm:"type:varchar(8);not null" json:"currency"`
	Status            string               `gorm:"type:varchar(20);index;not null" json:"status"`
	IssueDate         time.Time            `gorm:"not null" json:"issue_date"`
	DueDate           *time.Time           `gorm:"index" json:"due_date"`
	Subtotal          decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	DiscountTotal     decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"discount_total"`
	TaxAmount         decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"tax_amount"`
	AdjustmentAmount  decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"adjustment_amount"`
	GrandTotal        decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"grand_total"`
	PaidAmount        decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"paid_amount"`
	OutstandingAmount decimal.Decimal      `gorm:"type:decimal(18,2);not null" json:"outstanding_amount"`
	Version           int                  `gorm:"not null;default:0" json:"version"`
	Items             []InvoiceItem        `gorm:"foreignKey:InvoiceID" json:"items"`
	Transactions      []PaymentTransaction `gorm:"foreignKey:InvoiceID" json:"transactions"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoice"
}

// InvoiceItem is a single billable line. Subtotal = Quantity * UnitPrice,
// Total = Subtotal - Discount. SellerID identifies the marketplace seller the
// line's revenue share belongs to (zero for platform-owned lines).
type InvoiceItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID   int64           `gorm:"index;not null" json:"invoice_id"`
	Name        string          `gorm:"type:varchar(256);not null" json:"name"`
	Description string          `gorm:"type:varchar(512)" json:"description"`
	ItemType    string          `gorm:"type:varchar(20);not null" json:"item_type"`
	ReferenceID string          `gorm:"type:varchar(64);index" json:"reference_id"`
	SellerID    int64           `gorm:"index" json:"seller_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Discount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"discount"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	Attributes  string          `gorm:"type:text" json:"attributes"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (InvoiceItem) TableName() string {
	return "invoice_item"
}

// NewInvoice creates a draft invoice with zeroed totals.
func NewInvoice(number string, userID int64, currency string, issueDate time.Time) *Invoice {
	return &Invoice{
		Number:            number,
		UserID:            userID,
		Currency:          currency,
		Status:            InvoiceStatusDraft,
		IssueDate:         issueDate,
		Subtotal:          decimal.Zero,
		DiscountTotal:     decimal.Zero,
		TaxAmount:         decimal.Zero,
		AdjustmentAmount:  decimal.Zero,
		GrandTotal:        decimal.Zero,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: decimal.Zero,
	}
}

// AddItemParams carries the input for a new invoice line.
type AddItemParams struct {
	Name        string
	Description string
	ItemType    string
	ReferenceID string
	SellerID    int64
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Attributes  string
}

// AddItem appends a line and recomputes the invoice totals.
func (inv *Invoice) AddItem(p AddItemParams) (*InvoiceItem, error) {
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if p.UnitPrice.IsNegative() {
		return nil, ErrNonPositiveAmount
	}
	subtotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
	if p.Discount.IsNegative() || p.Discount.GreaterThan(subtotal) {
		return nil, ErrInvalidDiscount
	}

	item := InvoiceItem{
		InvoiceID:   inv.ID,
		Name:        p.Name,
		Description: p.Description,
		ItemType:    p.ItemType,
		ReferenceID: p.ReferenceID,
		SellerID:    p.SellerID,
		Quantity:    p.Quantity,
		UnitPrice:   p.UnitPrice,
		Discount:    p.Discount,
		Subtotal:    subtotal,
		Total:       subtotal.Sub(p.Discount),
	}
	if p.Attributes != "" {
		item.Attributes = p.Attributes
	}
	inv.Items = append(inv.Items, item)
	inv.Recalculate()
	return &inv.Items[len(inv.Items)-1], nil
}

// ApplyTax applies VAT once, as a percentage of the discounted subtotal.
// A second call is rejected so a retried settlement cannot double-tax.
func (inv *Invoice) ApplyTax(ratePercent decimal.Decimal) error {
	if !inv.TaxAmount.IsZero() {
		return ErrTaxAlreadyApplied
	}
	if ratePercent.IsZero() {
		return nil
	}
	base := inv.Subtotal.Sub(inv.DiscountTotal)
	inv.TaxAmount = money.Round2AwayFromZero(money.Percent(base, ratePercent))
	inv.Recalculate()
	return nil
}

// Issue moves a draft invoice into the payable Pending state.
func (inv *Invoice) Issue(dueDate *time.Time) {
	inv.DueDate = dueDate
	if inv.Status == InvoiceStatusDraft {
		inv.Status = InvoiceStatusPending
	}
	inv.Recalculate()
}

// Cancel is only legal while nothing has been paid.
func (inv *Invoice) Cancel() error {
	if inv.Status != InvoiceStatusDraft && inv.Status != InvoiceStatusPending && inv.Status != InvoiceStatusOverdue {
		return ErrInvoiceNotCancellable
	}
	if !inv.PaidAmount.IsZero() {
		return ErrInvoiceNotCancellable
	}
	inv.Status = InvoiceStatusCancelled
	return nil
}

// BelongsTo reports whether the invoice is owned by the given user.
func (inv *Invoice) BelongsTo(userID int64) bool {
	return inv.UserID == userID
}

// Recalculate rebuilds all derived totals from the item lines and
// transactions, then re-derives the status.
func (inv *Invoice) Recalculate() {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.Subtotal)
		discount = discount.Add(item.Discount)
	}
	inv.Subtotal = subtotal
	inv.DiscountTotal = discount
	inv.GrandTotal = subtotal.Sub(discount).Add(inv.TaxAmount).Add(inv.AdjustmentAmount)

	paid := decimal.Zero
	for _, txn := range inv.Transactions {
		if txn.Status == PaymentStatusSucceeded {
			paid = paid.Add(txn.Amount)
		}
	}
	inv.PaidAmount = paid
	inv.OutstandingAmount = inv.GrandTotal.Sub(paid)
	inv.deriveStatus()
}

// deriveStatus maps the paid/outstanding amounts onto a status. Cancelled and
// Draft are sticky; Overdue is set only by the scheduled sweep and survives
// here until a payment lands.
func (inv *Invoice) deriveStatus() {
	switch inv.Status {
	case InvoiceStatusCancelled, InvoiceStatusDraft:
		return
	}
	switch {
	case inv.GrandTotal.IsPositive() && inv.OutstandingAmount.LessThanOrEqual(decimal.Zero):
		inv.Status = InvoiceStatusPaid
	case inv.PaidAmount.IsPositive() && inv.OutstandingAmount.IsPositive():
		inv.Status = InvoiceStatusPartiallyPaid
	case inv.Status == InvoiceStatusOverdue:
		// keep until the sweep or a payment changes it
	default:
		inv.Status = InvoiceStatusPending
	}
}

// ItemsOfSeller returns the product lines owned by the given seller.
func (inv *Invoice) ItemsOfSeller(sellerID int64) []InvoiceItem {
	var items []InvoiceItem
	for _, item := range inv.Items {
		if item.SellerID == sellerID && item.ItemType == InvoiceItemTypeProduct {
			items = append(items, item)
		}
	}
	return items
}

// SellerIDs returns the distinct sellers with product lines on this invoice.
func (inv *Invoice) SellerIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, item := range inv.Items {
		if item.ItemType != InvoiceItemTypeProduct || item.SellerID == 0 {
			continue
		}
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			ids = append(ids, item.SellerID)
		}
	}
	return ids
}
