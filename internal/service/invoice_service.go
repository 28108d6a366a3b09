package service

import (
	"context"
	"fmt"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceService creates and queries invoices. Settlement lives in
// SettlementService; this service only builds the aggregate.
type InvoiceService struct {
	db          *gorm.DB
	cfg         *config.Config
	invoiceRepo *repository.InvoiceRepository
}

func NewInvoiceService(db *gorm.DB, cfg *config.Config) *InvoiceService {
	return &InvoiceService{
		db:          db,
		cfg:         cfg,
		invoiceRepo: repository.NewInvoiceRepository(db),
	}
}

type CreateInvoiceItem struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	ItemType    string          `json:"item_type" binding:"required"`
	ReferenceID string          `json:"reference_id"`
	SellerID    int64           `json:"seller_id"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
	Discount    decimal.Decimal `json:"discount"`
	Attributes  string          `json:"attributes"`
}

type CreateInvoiceRequest struct {
	UserID   int64               `json:"user_id" binding:"required"`
	Currency string              `json:"currency"`
	DueDays  int                 `json:"due_days"`
	Items    []CreateInvoiceItem `json:"items" binding:"required,min=1"`
}

// CreateInvoice builds the aggregate, issues it and persists it in one
// transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, audit model.AuditInfo, req *CreateInvoiceRequest) (*model.Invoice, error) {
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Business.DefaultCurrency
	}

	invoice := model.NewInvoice(idgen.GenerateInvoiceNumber(), req.UserID, currency, audit.At)
	for _, item := range req.Items {
		_, err := invoice.AddItem(model.AddItemParams{
			Name:        item.Name,
			Description: item.Description,
			ItemType:    item.ItemType,
			ReferenceID: item.ReferenceID,
			SellerID:    item.SellerID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Attributes:  item.Attributes,
		})
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Name, err)
		}
	}

	var dueDate *time.Time
	if req.DueDays > 0 {
		due := audit.At.AddDate(0, 0, req.DueDays)
		dueDate = &due
	}
	invoice.Issue(dueDate)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.invoiceRepo.Create(ctx, tx, invoice)
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, userID int64, number string) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !invoice.BelongsTo(userID) {
		return nil, ErrNotInvoiceOwner
	}
	return invoice, nil
}

func (s *InvoiceService) ListInvoices(ctx context.Context, userID int64, page, pageSize int) ([]*model.Invoice, int64, error) {
	return s.invoiceRepo.ListByUserID(ctx, userID, page, pageSize)
}

// CancelInvoice cancels an unpaid invoice through the aggregate's guard.
func (s *InvoiceService) CancelInvoice(ctx context.Context, audit model.AuditInfo, userID int64, number string) (*model.Invoice, error) {
	return s.invoiceRepo.Mutate(ctx, number, func(tx *gorm.DB, invoice *model.Invoice) error {
		if !invoice.BelongsTo(userID) {
			return ErrNotInvoiceOwner
		}
		return invoice.Cancel()
	})
}
