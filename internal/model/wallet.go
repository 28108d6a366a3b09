package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletTransactionTypeCredit = "CREDIT"
	WalletTransactionTypeDebit  = "DEBIT"
)

const (
	WalletTransactionStatusPending   = "PENDING"
	WalletTransactionStatusSucceeded = "SUCCEEDED"
	WalletTransactionStatusFailed    = "FAILED"
)

// Wallet transaction purposes. A first-class column instead of a free-text
// metadata tag, so ledger classification never depends on string matching.
const (
	WalletPurposeDeposit        = "DEPOSIT"
	WalletPurposeInvoicePayment = "INVOICE_PAYMENT"
	WalletPurposeSellerShare    = "SELLER_SHARE"
	WalletPurposeRefund         = "REFUND"
	WalletPurposeWithdrawal     = "WITHDRAWAL"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrWalletLocked        = errors.New("wallet is locked")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
)

// ============================================================================
// Wallet aggregate root
// ============================================================================

// WalletAccount is a per-user stored-value balance. The invariant is
// balance = sum of Succeeded credits - sum of Succeeded debits; a debit that
// would take the balance negative fails up front. A locked wallet rejects
// both debits and credits: a freeze is a compliance hold and money moving in
// either direction would change the frozen position.
type WalletAccount struct {
	ID           int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64               `gorm:"uniqueIndex;not null" json:"user_id"`
	Currency     string              `gorm:"type:varchar(8);not null" json:"currency"`
	Balance      decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"balance"`
	IsLocked     bool                `gorm:"not null;default:false" json:"is_locked"`
	Version      int                 `gorm:"not null;default:0" json:"version"`
	Transactions []WalletTransaction `gorm:"foreignKey:WalletID" json:"transactions,omitempty"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletAccount) TableName() string {
	return "wallet_account"
}

// WalletTransaction is one ledger entry. Append-only: entries are never
// modified or deleted once written. BalanceAfter is an audit snapshot, not a
// source of truth. The (wallet, invoice, purpose) unique index is what makes
// seller-share crediting idempotent under at-least-once event delivery.
type WalletTransaction struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID             int64           `gorm:"index;not null;uniqueIndex:idx_wallet_invoice_purpose" json:"wallet_id"`
	Number               string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`
	Amount               decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Type                 string          `gorm:"type:varchar(10);not null" json:"type"`
	Status               string          `gorm:"type:varchar(20);not null" json:"status"`
	Purpose              string          `gorm:"type:varchar(20);not null;index;uniqueIndex:idx_wallet_invoice_purpose" json:"purpose"`
	BalanceAfter         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_after"`
	InvoiceID            *int64          `gorm:"index;uniqueIndex:idx_wallet_invoice_purpose" json:"invoice_id"`
	PaymentTransactionID *int64          `gorm:"index" json:"payment_transaction_id"`
	Reference            string          `gorm:"type:varchar(128)" json:"reference"`
	Description          string          `gorm:"type:varchar(512)" json:"description"`
	Metadata             string          `gorm:"type:text" json:"metadata"`
	OccurredAt           time.Time       `gorm:"not null" json:"occurred_at"`
	CreatedAt            time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}

// NewWalletAccount creates an empty, unlocked wallet.
func NewWalletAccount(userID int64, currency string) *WalletAccount {
	return &WalletAccount{
		UserID:   userID,
		Currency: currency,
		Balance:  decimal.Zero,
	}
}

// EntryParams carries the input common to credits and debits.
type EntryParams struct {
	Number               string
	Amount               decimal.Decimal
	Purpose              string
	Status               string
	Reference            string
	Description          string
	Metadata             string
	InvoiceID            *int64
	PaymentTransactionID *int64
	OccurredAt           time.Time
}

// Credit adds funds. A Succeeded credit increments the balance and snapshots
// it on the ledger entry.
func (w *WalletAccount) Credit(p EntryParams) (*WalletTransaction, error) {
	return w.appendEntry(WalletTransactionTypeCredit, p)
}

// Debit removes funds. A Succeeded debit requires balance >= amount.
func (w *WalletAccount) Debit(p EntryParams) (*WalletTransaction, error) {
	return w.appendEntry(WalletTransactionTypeDebit, p)
}

func (w *WalletAccount) appendEntry(entryType string, p EntryParams) (*WalletTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if w.IsLocked {
		return nil, ErrWalletLocked
	}
	status := p.Status
	if status == "" {
		status = WalletTransactionStatusSucceeded
	}
	if status == WalletTransactionStatusSucceeded {
		if entryType == WalletTransactionTypeDebit && w.Balance.LessThan(p.Amount) {
			return nil, ErrInsufficientBalance
		}
		if entryType == WalletTransactionTypeDebit {
			w.Balance = w.Balance.Sub(p.Amount)
		} else {
			w.Balance = w.Balance.Add(p.Amount)
		}
	}

	occurredAt := p.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	txn := WalletTransaction{
		WalletID:             w.ID,
		Number:               p.Number,
		Amount:               p.Amount,
		Type:                 entryType,
		Status:               status,
		Purpose:              p.Purpose,
		BalanceAfter:         w.Balance,
		InvoiceID:            p.InvoiceID,
		PaymentTransactionID: p.PaymentTransactionID,
		Reference:            p.Reference,
		Description:          p.Description,
		Metadata:             p.Metadata,
		OccurredAt:           occurredAt,
	}
	w.Transactions = append(w.Transactions, txn)
	return &w.Transactions[len(w.Transactions)-1], nil
}

// ============================================================================
// Per-seller revenue ledger
// ============================================================================

// SellerRevenue tracks how much revenue share has been credited to a seller's
// wallet, updated in the same transaction as the credit itself. Pending
// revenue is then (computed share over paid invoices) - CreditedTotal, with
// no re-scan of wallet metadata.
type SellerRevenue struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID      int64           `gorm:"uniqueIndex;not null" json:"seller_id"`
	CreditedTotal decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"credited_total"`
	Version       int             `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SellerRevenue) TableName() string {
	return "seller_revenue"
}
