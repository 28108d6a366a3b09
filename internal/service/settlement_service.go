package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/infrastructure/gateway"
	"marketbill/internal/infrastructure/lock"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotInvoiceOwner   = errors.New("invoice does not belong to this user")
	ErrInvoiceNotPayable = errors.New("invoice is not payable in its current state")
)

// SettlementService settles invoices, either against the buyer's wallet or
// through the external banking gateway. Wallet settlement is one database
// transaction: debit, payment transaction, bidirectional link and the
// invoice-paid outbox event all commit or roll back together. Side effects
// (seller share, stock) are the settlement worker's job, driven by the outbox.
type SettlementService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	bank         gateway.BankingGateway
	invoiceRepo  *repository.InvoiceRepository
	walletRepo   *repository.WalletRepository
	settingsRepo *repository.SettingsRepository
	outboxRepo   *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, bank gateway.BankingGateway) *SettlementService {
	return &SettlementService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		bank:         bank,
		invoiceRepo:  repository.NewInvoiceRepository(db),
		walletRepo:   repository.NewWalletRepository(db),
		settingsRepo: repository.NewSettingsRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type SettlementResponse struct {
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Outstanding   decimal.Decimal `json:"outstanding_amount"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

// validateSettlement runs the preconditions shared by both payment paths.
func validateSettlement(invoice *model.Invoice, userID int64) error {
	if !invoice.BelongsTo(userID) {
		return ErrNotInvoiceOwner
	}
	switch invoice.Status {
	case model.InvoiceStatusCancelled, model.InvoiceStatusDraft:
		return ErrInvoiceNotPayable
	}
	if !invoice.OutstandingAmount.IsPositive() {
		return model.ErrInvoiceAlreadySettled
	}
	return nil
}

// prepareGatewayCharge runs the settlement preconditions and applies VAT, so
// the amount quoted to the gateway and the amount recorded on the pending
// attempt are the same post-tax outstanding figure.
func prepareGatewayCharge(inv *model.Invoice, settings *model.FinancialSettings, userID int64) (decimal.Decimal, error) {
	if err := validateSettlement(inv, userID); err != nil {
		return decimal.Zero, err
	}
	if inv.TaxAmount.IsZero() {
		if err := inv.ApplyTax(settings.VATRatePercent); err != nil {
			return decimal.Zero, err
		}
	}
	return inv.OutstandingAmount, nil
}

// applyTaxIfNeeded lazily applies VAT from the financial settings. Tax is
// computed exactly once per invoice; the TaxAmount zero-check is the guard.
func (s *SettlementService) applyTaxIfNeeded(ctx context.Context, invoice *model.Invoice) error {
	if !invoice.TaxAmount.IsZero() {
		return nil
	}
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load financial settings: %w", err)
	}
	return invoice.ApplyTax(settings.VATRatePercent)
}

// PayInvoiceWithWallet settles the full outstanding amount of an invoice from
// the requesting user's wallet.
func (s *SettlementService) PayInvoiceWithWallet(ctx context.Context, audit model.AuditInfo, userID int64, invoiceNumber string) (*SettlementResponse, error) {
	settlementLock := lock.NewSettlementLock(s.redisClient, userID, uuid.NewString())
	if err := settlementLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("system busy, please retry: %w", err)
	}
	defer settlementLock.Unlock(ctx)

	var resp *SettlementResponse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.GetByNumberForUpdate(ctx, tx, invoiceNumber)
		if err != nil {
			return err
		}
		if err := validateSettlement(invoice, userID); err != nil {
			return err
		}
		if err := s.applyTaxIfNeeded(ctx, invoice); err != nil {
			return err
		}

		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if wallet.Currency != invoice.Currency {
			return model.ErrCurrencyMismatch
		}

		outstanding := invoice.OutstandingAmount
		invoiceID := invoice.ID
		walletEntry, err := wallet.Debit(model.EntryParams{
			Number:      idgen.GenerateWalletTransactionNumber(),
			Amount:      outstanding,
			Purpose:     model.WalletPurposeInvoicePayment,
			Status:      model.WalletTransactionStatusSucceeded,
			Reference:   invoice.Number,
			Description: fmt.Sprintf("payment of invoice %s", invoice.Number),
			InvoiceID:   &invoiceID,
			OccurredAt:  audit.At,
		})
		if err != nil {
			return err
		}
		// persist the wallet first so the ledger entry gets its id
		if err := s.walletRepo.Save(ctx, tx, wallet); err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}

		paymentTxn, err := invoice.AddTransaction(model.AddTransactionParams{
			Number:      idgen.GeneratePaymentNumber(),
			Amount:      outstanding,
			Method:      model.PaymentMethodWallet,
			Status:      model.PaymentStatusSucceeded,
			Reference:   walletEntry.Number,
			Gateway:     "wallet",
			Description: fmt.Sprintf("wallet payment by user %d", audit.ActorID),
			OccurredAt:  audit.At,
		})
		if err != nil {
			return err
		}
		paymentTxn.WalletTransactionID = &walletEntry.ID

		if err := s.invoiceRepo.Save(ctx, tx, invoice); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}

		// close the loop: ledger entry -> payment transaction
		if err := tx.WithContext(ctx).
			Model(&model.WalletTransaction{}).
			Where("id = ?", walletEntry.ID).
			Update("payment_transaction_id", paymentTxn.ID).Error; err != nil {
			return err
		}

		if invoice.Status == model.InvoiceStatusPaid {
			if err := s.writeInvoicePaidEvent(ctx, tx, invoice); err != nil {
				return err
			}
		}

		resp = &SettlementResponse{
			InvoiceNumber: invoice.Number,
			Status:        invoice.Status,
			PaidAmount:    invoice.PaidAmount,
			Outstanding:   invoice.OutstandingAmount,
			WalletBalance: wallet.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settlement] wallet payment ok: invoice=%s, user=%d, paid=%s",
		resp.InvoiceNumber, userID, resp.PaidAmount.String())
	return resp, nil
}

// writeInvoicePaidEvent records the durable InvoicePaid event in the same
// transaction as the payment that produced it.
func (s *SettlementService) writeInvoicePaidEvent(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	event := model.InvoicePaidEvent{
		EventID:       uuid.NewString(),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		UserID:        invoice.UserID,
		Currency:      invoice.Currency,
		GrandTotal:    invoice.GrandTotal.String(),
		PaidAt:        time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &model.OutboxMessage{
		EventID:    event.EventID,
		MessageKey: invoice.Number,
		Topic:      model.TopicInvoicePaid,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}

type GatewaySessionResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	Reference     string `json:"reference"`
	RedirectURL   string `json:"redirect_url"`
}

// StartGatewayPayment opens a payment session with the banking gateway for
// the invoice's outstanding amount and records a Pending payment attempt.
func (s *SettlementService) StartGatewayPayment(ctx context.Context, audit model.AuditInfo, userID int64, invoiceNumber string) (*GatewaySessionResponse, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load financial settings: %w", err)
	}

	// Tax is applied and committed before the gateway hears an amount, so
	// the session and the recorded attempt cannot disagree.
	var amount decimal.Decimal
	var currency string
	_, err = s.invoiceRepo.Mutate(ctx, invoiceNumber, func(tx *gorm.DB, inv *model.Invoice) error {
		charge, err := prepareGatewayCharge(inv, settings, userID)
		if err != nil {
			return err
		}
		amount = charge
		currency = inv.Currency
		return nil
	})
	if err != nil {
		return nil, err
	}

	reference := idgen.GeneratePaymentNumber()
	session, err := s.bank.CreatePaymentSession(ctx, gateway.PaymentSessionRequest{
		Reference:   reference,
		Amount:      amount,
		Currency:    currency,
		Description: fmt.Sprintf("invoice %s", invoiceNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("banking gateway: %w", err)
	}

	_, err = s.invoiceRepo.Mutate(ctx, invoiceNumber, func(tx *gorm.DB, inv *model.Invoice) error {
		if err := validateSettlement(inv, userID); err != nil {
			return err
		}
		_, err := inv.AddTransaction(model.AddTransactionParams{
			Number:      reference,
			Amount:      amount,
			Method:      model.PaymentMethodOnlineGateway,
			Status:      model.PaymentStatusPending,
			Reference:   session.Reference,
			Gateway:     s.bank.Name(),
			Description: fmt.Sprintf("gateway payment started by user %d", audit.ActorID),
			OccurredAt:  audit.At,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &GatewaySessionResponse{
		InvoiceNumber: invoiceNumber,
		Reference:     session.Reference,
		RedirectURL:   session.RedirectURL,
	}, nil
}

// VerifyGatewayPayment is the gateway callback: it asks the gateway for the
// receipt and resolves the pending payment attempt. A repeated callback for
// an already-terminal transaction is rejected by the aggregate, so a gateway
// double-notification cannot settle twice.
func (s *SettlementService) VerifyGatewayPayment(ctx context.Context, audit model.AuditInfo, reference string) (*SettlementResponse, error) {
	invoice, err := s.invoiceRepo.GetByTransactionReference(ctx, s.bank.Name(), reference)
	if err != nil {
		return nil, err
	}

	receipt, err := s.bank.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("banking gateway: %w", err)
	}

	status := model.PaymentStatusFailed
	if receipt.Succeeded {
		status = model.PaymentStatusSucceeded
	}

	updated, err := s.invoiceRepo.Mutate(ctx, invoice.Number, func(tx *gorm.DB, inv *model.Invoice) error {
		var txnID int64
		for i := range inv.Transactions {
			if inv.Transactions[i].Gateway == s.bank.Name() && inv.Transactions[i].Reference == reference {
				txnID = inv.Transactions[i].ID
				break
			}
		}
		if txnID == 0 {
			return model.ErrTransactionNotFound
		}

		_, err := inv.UpdateTransaction(txnID, model.UpdateTransactionParams{
			Status:       status,
			Message:      receipt.Message,
			TrackingCode: receipt.TrackingCode,
			ProcessedAt:  receipt.ProcessedAt,
			Amount:       receipt.Amount,
		})
		if err != nil {
			return err
		}

		if inv.Status == model.InvoiceStatusPaid {
			return s.writeInvoicePaidEvent(ctx, tx, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settlement] gateway verification: invoice=%s, reference=%s, status=%s",
		updated.Number, reference, status)

	return &SettlementResponse{
		InvoiceNumber: updated.Number,
		Status:        updated.Status,
		PaidAmount:    updated.PaidAmount,
		Outstanding:   updated.OutstandingAmount,
	}, nil
}
