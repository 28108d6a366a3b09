package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"marketbill/internal/model"
	"marketbill/internal/repository"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeSellerShare(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		settings model.FinancialSettings
		want     string
	}{
		{
			name:  "complementary method keeps the share as-is",
			total: "1000000",
			settings: model.FinancialSettings{
				SellerSharePercent:        dec("70"),
				PlatformCommissionPercent: dec("10"),
				CommissionMethod:          model.CommissionMethodComplementary,
			},
			want: "700000",
		},
		{
			name:  "deduct-from-seller subtracts the commission",
			total: "1000000",
			settings: model.FinancialSettings{
				SellerSharePercent:        dec("70"),
				PlatformCommissionPercent: dec("10"),
				CommissionMethod:          model.CommissionMethodDeductFromSeller,
			},
			want: "600000",
		},
		{
			name:  "fractional result rounds away from zero",
			total: "99.99",
			settings: model.FinancialSettings{
				SellerSharePercent: dec("33.33"),
				CommissionMethod:   model.CommissionMethodComplementary,
			},
			// 99.99 * 33.33% = 33.326667
			want: "33.33",
		},
		{
			name:  "commission above share clamps to zero",
			total: "1000",
			settings: model.FinancialSettings{
				SellerSharePercent:        dec("10"),
				PlatformCommissionPercent: dec("20"),
				CommissionMethod:          model.CommissionMethodDeductFromSeller,
			},
			want: "0",
		},
		{
			name:  "zero total yields zero share",
			total: "0",
			settings: model.FinancialSettings{
				SellerSharePercent: dec("70"),
				CommissionMethod:   model.CommissionMethodComplementary,
			},
			want: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSellerShare(dec(tt.total), &tt.settings)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ComputeSellerShare(%s) = %s, want %s", tt.total, got, tt.want)
			}
		})
	}
}

func TestSellerItemTotal(t *testing.T) {
	inv := model.NewInvoice("INV1", 42, "IRR", time.Now())
	mustAdd := func(p model.AddItemParams) {
		t.Helper()
		if _, err := inv.AddItem(p); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}
	mustAdd(model.AddItemParams{
		Name: "keyboard", ItemType: model.InvoiceItemTypeProduct, SellerID: 7,
		Quantity: 2, UnitPrice: dec("450000"), Discount: dec("100000"),
	})
	mustAdd(model.AddItemParams{
		Name: "mouse", ItemType: model.InvoiceItemTypeProduct, SellerID: 7,
		Quantity: 1, UnitPrice: dec("200000"),
	})
	mustAdd(model.AddItemParams{
		Name: "shipping", ItemType: model.InvoiceItemTypeService, SellerID: 7,
		Quantity: 1, UnitPrice: dec("50000"),
	})
	mustAdd(model.AddItemParams{
		Name: "monitor", ItemType: model.InvoiceItemTypeProduct, SellerID: 9,
		Quantity: 1, UnitPrice: dec("3000000"),
	})

	if got := sellerItemTotal(inv, 7); !got.Equal(dec("1000000")) {
		t.Errorf("seller 7 total = %s, want 1000000 (service line excluded)", got)
	}
	if got := sellerItemTotal(inv, 9); !got.Equal(dec("3000000")) {
		t.Errorf("seller 9 total = %s, want 3000000", got)
	}
	if got := sellerItemTotal(inv, 11); !got.IsZero() {
		t.Errorf("unknown seller total = %s, want 0", got)
	}
}

func TestStockFailureSkippable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"product missing", repository.ErrProductNotFound, true},
		{"oversold line", repository.ErrStockNotEnough, true},
		{"wrapped business condition", fmt.Errorf("line 3: %w", repository.ErrStockNotEnough), true},
		{"transient driver error", errors.New("driver: bad connection"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stockFailureSkippable(tt.err); got != tt.want {
				t.Errorf("stockFailureSkippable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
