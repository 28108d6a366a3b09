package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusProcessed = "PROCESSED"
	WithdrawalStatusRejected  = "REJECTED"
)

const (
	WithdrawalTypeSellerRevenue = "SELLER_REVENUE"
	WithdrawalTypeWallet        = "WALLET"
)

// ValidWithdrawalTransitions is the full withdrawal state machine. Terminal
// states have no outgoing edges.
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending: {WithdrawalStatusProcessed, WithdrawalStatusRejected},
}

// CanWithdrawalTransition reports whether a status change is legal.
func CanWithdrawalTransition(currentStatus, targetStatus string) bool {
	for _, s := range ValidWithdrawalTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// WithdrawalRequest is a seller's request to cash out credited revenue (or a
// buyer's plain wallet cash-out) to a bank account.
type WithdrawalRequest struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Number       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`
	UserID       int64           `gorm:"index;not null" json:"user_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	RequestType  string          `gorm:"type:varchar(20);not null" json:"request_type"`
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	BankName     string          `gorm:"type:varchar(128)" json:"bank_name"`
	IBAN         string          `gorm:"type:varchar(64)" json:"iban"`
	RejectReason string          `gorm:"type:varchar(512)" json:"reject_reason"`
	ProcessedAt  *time.Time      `json:"processed_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
