package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Snowflake-style id generator. Document numbers (invoice, payment, wallet
// transaction, withdrawal) must be globally unique and roughly time-ordered;
// they also must not leak sequential business volume, hence the worker id and
// per-millisecond sequence mixed into the tail.
//
// Layout (64 bits): 41-bit millisecond timestamp | 10-bit worker id | 12-bit
// sequence.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets up the process-wide generator. workerID must be unique per
// running instance.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID must be between 0 and %d", maxWorkerID)
		}
		defaultGenerator = &Snowflake{workerID: workerID}
	})
}

func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond, spin to the next one
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

func numbered(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%08d", prefix, timestamp, id%100000000)
}

// GenerateInvoiceNumber produces an invoice number, e.g. INV2026011514305212345678.
func GenerateInvoiceNumber() string {
	return numbered("INV")
}

// GeneratePaymentNumber produces a payment transaction number (PAY...).
func GeneratePaymentNumber() string {
	return numbered("PAY")
}

// GenerateWalletTransactionNumber produces a wallet ledger entry number (WTX...).
func GenerateWalletTransactionNumber() string {
	return numbered("WTX")
}

// GenerateWithdrawalNumber produces a withdrawal request number (WDR...).
func GenerateWithdrawalNumber() string {
	return numbered("WDR")
}
