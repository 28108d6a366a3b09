package idgen

import (
	"strings"
	"testing"
)

func TestNextIDMonotonic(t *testing.T) {
	Init(1)

	seen := make(map[int64]bool)
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id := NextID()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		prev = id
	}
}

func TestDocumentNumbers(t *testing.T) {
	Init(1)

	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"invoice", GenerateInvoiceNumber, "INV"},
		{"payment", GeneratePaymentNumber, "PAY"},
		{"wallet", GenerateWalletTransactionNumber, "WTX"},
		{"withdrawal", GenerateWithdrawalNumber, "WDR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number := tt.gen()
			if !strings.HasPrefix(number, tt.prefix) {
				t.Errorf("number %s missing prefix %s", number, tt.prefix)
			}
			// prefix + 14-digit timestamp + 8-digit tail
			if want := len(tt.prefix) + 14 + 8; len(number) != want {
				t.Errorf("number %s length = %d, want %d", number, len(number), want)
			}
			if number == tt.gen() {
				t.Errorf("consecutive numbers collide: %s", number)
			}
		})
	}
}
