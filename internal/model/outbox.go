package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// Outbox topics. InvoicePaid rows are consumed in-process by the settlement
// worker before being relayed to Kafka; everything else goes straight out via
// the outbox sender.
const (
	TopicInvoicePaid         = "billing.invoice.paid"
	TopicWithdrawalProcessed = "billing.withdrawal.processed"
)

// OutboxMessage is a durable integration event written in the same database
// transaction as the state change it describes. EventID is the consumer-side
// idempotency key.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);index;not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// InvoicePaidEvent is the payload of a TopicInvoicePaid message.
type InvoicePaidEvent struct {
	EventID       string `json:"event_id"`
	InvoiceID     int64  `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	UserID        int64  `json:"user_id"`
	Currency      string `json:"currency"`
	GrandTotal    string `json:"grand_total"`
	PaidAt        string `json:"paid_at"`
}
