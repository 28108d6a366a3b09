package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"marketbill/internal/config"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/pkg/idgen"
	"marketbill/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevenueService computes seller revenue shares and applies the post-payment
// side effects of a paid invoice: crediting each seller's wallet and reducing
// stock. It is driven by the settlement worker consuming durable InvoicePaid
// events, so every step must tolerate redelivery.
type RevenueService struct {
	db             *gorm.DB
	cfg            *config.Config
	invoiceRepo    *repository.InvoiceRepository
	walletRepo     *repository.WalletRepository
	revenueRepo    *repository.RevenueRepository
	withdrawalRepo *repository.WithdrawalRepository
	settingsRepo   *repository.SettingsRepository
	stockRepo      *repository.StockRepository
}

func NewRevenueService(db *gorm.DB, cfg *config.Config) *RevenueService {
	return &RevenueService{
		db:             db,
		cfg:            cfg,
		invoiceRepo:    repository.NewInvoiceRepository(db),
		walletRepo:     repository.NewWalletRepository(db),
		revenueRepo:    repository.NewRevenueRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		settingsRepo:   repository.NewSettingsRepository(db),
		stockRepo:      repository.NewStockRepository(db),
	}
}

// ComputeSellerShare applies the configured commission method to a seller's
// product line total. Complementary treats the share percentage as final;
// DeductFromSeller additionally subtracts the platform commission. The result
// is rounded to 2 decimals away from zero and never negative.
func ComputeSellerShare(itemTotal decimal.Decimal, settings *model.FinancialSettings) decimal.Decimal {
	share := money.Percent(itemTotal, settings.SellerSharePercent)
	if settings.CommissionMethod == model.CommissionMethodDeductFromSeller {
		commission := money.Percent(itemTotal, settings.PlatformCommissionPercent)
		share = share.Sub(commission)
	}
	share = money.Round2AwayFromZero(share)
	if share.IsNegative() {
		return decimal.Zero
	}
	return share
}

// sellerItemTotal sums the seller's product line totals on one invoice.
func sellerItemTotal(invoice *model.Invoice, sellerID int64) decimal.Decimal {
	total := decimal.Zero
	for _, item := range invoice.ItemsOfSeller(sellerID) {
		total = total.Add(item.Total)
	}
	return total
}

// HandleInvoicePaid applies the side effects of one paid invoice. Safe under
// at-least-once delivery: the share ledger entry's unique key and the stock
// movement's unique invoice item id turn a redelivery into a no-op.
func (s *RevenueService) HandleInvoicePaid(ctx context.Context, event *model.InvoicePaidEvent) error {
	invoice, err := s.invoiceRepo.GetByNumber(ctx, event.InvoiceNumber)
	if err != nil {
		return err
	}
	if invoice.Status != model.InvoiceStatusPaid {
		// the event outlived the invoice state (e.g. later refund tooling);
		// nothing to apply
		log.Printf("[Revenue] skipping event %s: invoice %s is %s", event.EventID, invoice.Number, invoice.Status)
		return nil
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load financial settings: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, sellerID := range invoice.SellerIDs() {
			if err := s.creditSellerShare(ctx, tx, invoice, sellerID, settings); err != nil {
				return fmt.Errorf("credit seller %d: %w", sellerID, err)
			}
		}
		return s.reduceStock(ctx, tx, invoice)
	})
}

// creditSellerShare credits one seller's wallet and bumps the running revenue
// ledger, all inside the caller's transaction.
func (s *RevenueService) creditSellerShare(ctx context.Context, tx *gorm.DB, invoice *model.Invoice, sellerID int64, settings *model.FinancialSettings) error {
	share := ComputeSellerShare(sellerItemTotal(invoice, sellerID), settings)
	if !share.IsPositive() {
		return nil
	}

	if _, err := s.walletRepo.GetOrCreate(ctx, sellerID, invoice.Currency); err != nil {
		return err
	}
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, sellerID)
	if err != nil {
		return err
	}
	if wallet.IsLocked {
		return model.ErrWalletLocked
	}
	if wallet.Currency != invoice.Currency {
		return model.ErrCurrencyMismatch
	}

	invoiceID := invoice.ID
	entry := &model.WalletTransaction{
		WalletID:     wallet.ID,
		Number:       idgen.GenerateWalletTransactionNumber(),
		Amount:       share,
		Type:         model.WalletTransactionTypeCredit,
		Status:       model.WalletTransactionStatusSucceeded,
		Purpose:      model.WalletPurposeSellerShare,
		BalanceAfter: wallet.Balance.Add(share),
		InvoiceID:    &invoiceID,
		Reference:    invoice.Number,
		Description:  fmt.Sprintf("revenue share for invoice %s", invoice.Number),
		OccurredAt:   invoice.UpdatedAt,
	}
	applied, err := s.walletRepo.CreateShareEntry(ctx, tx, entry)
	if err != nil {
		return err
	}
	if !applied {
		// redelivered event, share already credited
		return nil
	}

	wallet.Balance = wallet.Balance.Add(share)
	if err := s.walletRepo.Save(ctx, tx, wallet); err != nil {
		return err
	}
	if err := s.revenueRepo.AddCredited(ctx, tx, sellerID, share); err != nil {
		return err
	}

	log.Printf("[Revenue] seller share credited: seller=%d, invoice=%s, amount=%s",
		sellerID, invoice.Number, share.String())
	return nil
}

// reduceStock decrements stock for every sold product line. Each line runs in
// its own savepoint: a missing product or an oversold line is a business
// condition, logged and skipped without losing the rest of the side effects.
// Anything else is returned so the worker retries the event instead of
// silently dropping the decrement.
func (s *RevenueService) reduceStock(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	for _, item := range invoice.Items {
		if item.ItemType != model.InvoiceItemTypeProduct || item.ReferenceID == "" {
			continue
		}
		item := item
		err := tx.Transaction(func(itemTx *gorm.DB) error {
			_, err := s.stockRepo.DecrementForSale(ctx, itemTx, item.ReferenceID, item.ID, item.Quantity)
			return err
		})
		if err != nil {
			if stockFailureSkippable(err) {
				log.Printf("[Revenue] stock not reduced: invoice=%s, product=%s, qty=%d, reason=%v",
					invoice.Number, item.ReferenceID, item.Quantity, err)
				continue
			}
			return fmt.Errorf("reduce stock for product %s: %w", item.ReferenceID, err)
		}
	}
	return nil
}

// stockFailureSkippable reports whether a stock decrement failure is a
// business condition to skip rather than a fault to retry.
func stockFailureSkippable(err error) bool {
	return errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrStockNotEnough)
}

// RevenueSummary is the seller-facing revenue dashboard slice.
type RevenueSummary struct {
	SellerID           int64           `json:"seller_id"`
	TotalShare         decimal.Decimal `json:"total_share"`
	CreditedRevenue    decimal.Decimal `json:"credited_revenue"`
	PendingRevenue     decimal.Decimal `json:"pending_revenue"`
	TotalWithdrawals   decimal.Decimal `json:"total_withdrawals"`
	PendingHolds       decimal.Decimal `json:"pending_holds"`
	AvailableToCashOut decimal.Decimal `json:"available_to_cash_out"`
}

// Summary reports the seller's revenue position. The credited figure comes
// from the running ledger; the total share is recomputed over paid invoices
// only to derive what is still pending (e.g. events not yet processed).
func (s *RevenueService) Summary(ctx context.Context, sellerID int64) (*RevenueSummary, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.ListPaidBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	totalShare := decimal.Zero
	for _, invoice := range invoices {
		totalShare = totalShare.Add(ComputeSellerShare(sellerItemTotal(invoice, sellerID), settings))
	}

	credited, err := s.revenueRepo.CreditedTotal(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.withdrawalRepo.SumProcessedSellerRevenue(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	held, err := s.withdrawalRepo.SumPendingSellerRevenue(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	pending := totalShare.Sub(credited)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	available := credited.Sub(withdrawn).Sub(held)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return &RevenueSummary{
		SellerID:           sellerID,
		TotalShare:         totalShare,
		CreditedRevenue:    credited,
		PendingRevenue:     pending,
		TotalWithdrawals:   withdrawn,
		PendingHolds:       held,
		AvailableToCashOut: available,
	}, nil
}

// AvailableWithdrawalAmount is what the seller can request right now.
func (s *RevenueService) AvailableWithdrawalAmount(ctx context.Context, sellerID int64) (decimal.Decimal, error) {
	summary, err := s.Summary(ctx, sellerID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.AvailableToCashOut, nil
}
