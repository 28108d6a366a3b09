package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentMethodWallet        = "WALLET"
	PaymentMethodOnlineGateway = "ONLINE_GATEWAY"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSucceeded = "SUCCEEDED"
	PaymentStatusFailed    = "FAILED"
)

// PaymentTransaction is one payment attempt against an invoice. It is created
// Pending and transitions exactly once to Succeeded or Failed; after that only
// annotation fields (message, tracking code) may change. Reference is the
// external correlation id and must be unique per gateway.
type PaymentTransaction struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID           int64           `gorm:"index;not null" json:"invoice_id"`
	Number              string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Method              string          `gorm:"type:varchar(20);not null" json:"method"`
	Status              string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Reference           string          `gorm:"type:varchar(128);uniqueIndex:idx_payment_gateway_ref" json:"reference"`
	Gateway             string          `gorm:"type:varchar(64);uniqueIndex:idx_payment_gateway_ref" json:"gateway"`
	TrackingCode        string          `gorm:"type:varchar(128)" json:"tracking_code"`
	Message             string          `gorm:"type:varchar(512)" json:"message"`
	Description         string          `gorm:"type:varchar(512)" json:"description"`
	Metadata            string          `gorm:"type:text" json:"metadata"`
	WalletTransactionID *int64          `gorm:"index" json:"wallet_transaction_id"`
	OccurredAt          time.Time       `gorm:"not null" json:"occurred_at"`
	ProcessedAt         *time.Time      `json:"processed_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transaction"
}

// IsTerminal reports whether the transaction has reached a final state.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status == PaymentStatusSucceeded || t.Status == PaymentStatusFailed
}

// AddTransactionParams carries the input for a new payment attempt.
type AddTransactionParams struct {
	Number      string
	Amount      decimal.Decimal
	Method      string
	Status      string
	Reference   string
	Gateway     string
	Description string
	Metadata    string
	OccurredAt  time.Time
}

// AddTransaction appends a payment attempt and recomputes the paid and
// outstanding amounts.
func (inv *Invoice) AddTransaction(p AddTransactionParams) (*PaymentTransaction, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	status := p.Status
	if status == "" {
		status = PaymentStatusPending
	}
	occurredAt := p.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	txn := PaymentTransaction{
		InvoiceID:   inv.ID,
		Number:      p.Number,
		Amount:      p.Amount,
		Method:      p.Method,
		Status:      status,
		Reference:   p.Reference,
		Gateway:     p.Gateway,
		Description: p.Description,
		Metadata:    p.Metadata,
		OccurredAt:  occurredAt,
	}
	inv.Transactions = append(inv.Transactions, txn)
	inv.Recalculate()
	return &inv.Transactions[len(inv.Transactions)-1], nil
}

// UpdateTransactionParams is the gateway verification callback payload.
type UpdateTransactionParams struct {
	Status       string
	Message      string
	TrackingCode string
	ProcessedAt  time.Time
	// Amount, when positive, overrides the pending amount with what the
	// gateway actually captured.
	Amount decimal.Decimal
}

// UpdateTransaction resolves a pending payment attempt. Only the
// Pending -> Succeeded/Failed transitions are legal; re-applying a callback
// to an already-terminal transaction is rejected rather than silently
// ignored, so a gateway double-callback surfaces as an error instead of a
// double-settlement.
func (inv *Invoice) UpdateTransaction(txnID int64, p UpdateTransactionParams) (*PaymentTransaction, error) {
	var txn *PaymentTransaction
	for i := range inv.Transactions {
		if inv.Transactions[i].ID == txnID {
			txn = &inv.Transactions[i]
			break
		}
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	if txn.IsTerminal() {
		return nil, ErrTransactionFinalized
	}
	if p.Status != PaymentStatusSucceeded && p.Status != PaymentStatusFailed {
		return nil, ErrInvalidTransition
	}

	if p.Amount.IsPositive() {
		txn.Amount = p.Amount
	}
	txn.Status = p.Status
	txn.Message = p.Message
	txn.TrackingCode = p.TrackingCode
	processedAt := p.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}
	txn.ProcessedAt = &processedAt

	inv.Recalculate()
	return txn, nil
}
