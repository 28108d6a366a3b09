package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv := NewInvoice("INV20260101000000001", 42, "IRR", time.Now())
	_, err := inv.AddItem(AddItemParams{
		Name:      "keyboard",
		ItemType:  InvoiceItemTypeProduct,
		SellerID:  7,
		Quantity:  2,
		UnitPrice: dec("450000"),
		Discount:  dec("100000"),
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	return inv
}

func TestAddItemTotals(t *testing.T) {
	inv := newTestInvoice(t)

	item := inv.Items[0]
	if !item.Subtotal.Equal(dec("900000")) {
		t.Errorf("item subtotal = %s, want 900000", item.Subtotal)
	}
	if !item.Total.Equal(dec("800000")) {
		t.Errorf("item total = %s, want 800000", item.Total)
	}
	if !inv.GrandTotal.Equal(dec("800000")) {
		t.Errorf("grand total = %s, want 800000", inv.GrandTotal)
	}
	if !inv.OutstandingAmount.Equal(dec("800000")) {
		t.Errorf("outstanding = %s, want 800000", inv.OutstandingAmount)
	}
}

func TestAddItemValidation(t *testing.T) {
	inv := NewInvoice("INV1", 1, "IRR", time.Now())

	tests := []struct {
		name    string
		params  AddItemParams
		wantErr error
	}{
		{
			name:    "zero quantity",
			params:  AddItemParams{Name: "x", Quantity: 0, UnitPrice: dec("10")},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative unit price",
			params:  AddItemParams{Name: "x", Quantity: 1, UnitPrice: dec("-10")},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "discount exceeds subtotal",
			params:  AddItemParams{Name: "x", Quantity: 1, UnitPrice: dec("10"), Discount: dec("11")},
			wantErr: ErrInvalidDiscount,
		},
		{
			name:    "negative discount",
			params:  AddItemParams{Name: "x", Quantity: 1, UnitPrice: dec("10"), Discount: dec("-1")},
			wantErr: ErrInvalidDiscount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := inv.AddItem(tt.params); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddItem() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyTax(t *testing.T) {
	inv := newTestInvoice(t)

	if err := inv.ApplyTax(dec("9")); err != nil {
		t.Fatalf("ApplyTax: %v", err)
	}
	// 9% of (900000 - 100000) = 72000
	if !inv.TaxAmount.Equal(dec("72000")) {
		t.Errorf("tax = %s, want 72000", inv.TaxAmount)
	}
	if !inv.GrandTotal.Equal(dec("872000")) {
		t.Errorf("grand total = %s, want 872000", inv.GrandTotal)
	}

	if err := inv.ApplyTax(dec("9")); !errors.Is(err, ErrTaxAlreadyApplied) {
		t.Errorf("second ApplyTax error = %v, want ErrTaxAlreadyApplied", err)
	}
}

func TestApplyTaxZeroRateIsNoop(t *testing.T) {
	inv := newTestInvoice(t)

	if err := inv.ApplyTax(decimal.Zero); err != nil {
		t.Fatalf("ApplyTax: %v", err)
	}
	if !inv.TaxAmount.IsZero() {
		t.Errorf("tax = %s, want 0", inv.TaxAmount)
	}
	// Zero rate must not arm the already-applied guard.
	if err := inv.ApplyTax(dec("9")); err != nil {
		t.Errorf("ApplyTax after zero rate: %v", err)
	}
}

func TestIssueAndDeriveStatus(t *testing.T) {
	inv := newTestInvoice(t)
	if inv.Status != InvoiceStatusDraft {
		t.Fatalf("status = %s, want DRAFT", inv.Status)
	}

	due := time.Now().Add(72 * time.Hour)
	inv.Issue(&due)
	if inv.Status != InvoiceStatusPending {
		t.Fatalf("status after issue = %s, want PENDING", inv.Status)
	}

	// Partial payment.
	if _, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY1", Amount: dec("300000"), Method: PaymentMethodWallet,
		Status: PaymentStatusSucceeded,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if inv.Status != InvoiceStatusPartiallyPaid {
		t.Errorf("status = %s, want PARTIALLY_PAID", inv.Status)
	}
	if !inv.OutstandingAmount.Equal(dec("500000")) {
		t.Errorf("outstanding = %s, want 500000", inv.OutstandingAmount)
	}

	// Settle the rest.
	if _, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY2", Amount: dec("500000"), Method: PaymentMethodWallet,
		Status: PaymentStatusSucceeded,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if inv.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", inv.Status)
	}
	if !inv.OutstandingAmount.IsZero() {
		t.Errorf("outstanding = %s, want 0", inv.OutstandingAmount)
	}
}

func TestFailedTransactionDoesNotCount(t *testing.T) {
	inv := newTestInvoice(t)
	inv.Issue(nil)

	if _, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY1", Amount: dec("800000"), Method: PaymentMethodOnlineGateway,
		Status: PaymentStatusFailed,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if !inv.PaidAmount.IsZero() {
		t.Errorf("paid = %s, want 0", inv.PaidAmount)
	}
	if inv.Status != InvoiceStatusPending {
		t.Errorf("status = %s, want PENDING", inv.Status)
	}
}

func TestOverdueKeptUntilPayment(t *testing.T) {
	inv := newTestInvoice(t)
	inv.Issue(nil)
	inv.Status = InvoiceStatusOverdue

	inv.Recalculate()
	if inv.Status != InvoiceStatusOverdue {
		t.Fatalf("status = %s, want OVERDUE after recalculate", inv.Status)
	}

	if _, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY1", Amount: dec("800000"), Status: PaymentStatusSucceeded,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if inv.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", inv.Status)
	}
}

func TestUpdateTransaction(t *testing.T) {
	inv := newTestInvoice(t)
	inv.Issue(nil)

	txn, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY1", Amount: dec("800000"), Method: PaymentMethodOnlineGateway,
		Reference: "ref-1", Gateway: "acmebank",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	txn.ID = 11
	if inv.Status != InvoiceStatusPending {
		t.Fatalf("pending attempt changed status to %s", inv.Status)
	}

	if _, err := inv.UpdateTransaction(99, UpdateTransactionParams{Status: PaymentStatusSucceeded}); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("unknown txn error = %v, want ErrTransactionNotFound", err)
	}
	if _, err := inv.UpdateTransaction(11, UpdateTransactionParams{Status: PaymentStatusPending}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending->pending error = %v, want ErrInvalidTransition", err)
	}

	updated, err := inv.UpdateTransaction(11, UpdateTransactionParams{
		Status:       PaymentStatusSucceeded,
		TrackingCode: "trk-1",
	})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.ProcessedAt == nil {
		t.Error("ProcessedAt not set")
	}
	if inv.Status != InvoiceStatusPaid {
		t.Errorf("status = %s, want PAID", inv.Status)
	}

	// Gateway double-callback must surface, not re-apply.
	if _, err := inv.UpdateTransaction(11, UpdateTransactionParams{Status: PaymentStatusSucceeded}); !errors.Is(err, ErrTransactionFinalized) {
		t.Errorf("re-update error = %v, want ErrTransactionFinalized", err)
	}
	if !inv.PaidAmount.Equal(dec("800000")) {
		t.Errorf("paid = %s, want 800000 after rejected re-update", inv.PaidAmount)
	}
}

func TestUpdateTransactionAmountOverride(t *testing.T) {
	inv := newTestInvoice(t)
	inv.Issue(nil)

	txn, err := inv.AddTransaction(AddTransactionParams{
		Number: "PAY1", Amount: dec("800000"), Method: PaymentMethodOnlineGateway,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	txn.ID = 5

	if _, err := inv.UpdateTransaction(5, UpdateTransactionParams{
		Status: PaymentStatusSucceeded,
		Amount: dec("300000"),
	}); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if !inv.PaidAmount.Equal(dec("300000")) {
		t.Errorf("paid = %s, want captured 300000", inv.PaidAmount)
	}
	if inv.Status != InvoiceStatusPartiallyPaid {
		t.Errorf("status = %s, want PARTIALLY_PAID", inv.Status)
	}
}

func TestCancel(t *testing.T) {
	t.Run("pending unpaid", func(t *testing.T) {
		inv := newTestInvoice(t)
		inv.Issue(nil)
		if err := inv.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if inv.Status != InvoiceStatusCancelled {
			t.Errorf("status = %s, want CANCELLED", inv.Status)
		}
	})

	t.Run("partially paid", func(t *testing.T) {
		inv := newTestInvoice(t)
		inv.Issue(nil)
		if _, err := inv.AddTransaction(AddTransactionParams{
			Number: "PAY1", Amount: dec("100000"), Status: PaymentStatusSucceeded,
		}); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
		if err := inv.Cancel(); !errors.Is(err, ErrInvoiceNotCancellable) {
			t.Errorf("Cancel error = %v, want ErrInvoiceNotCancellable", err)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		inv := newTestInvoice(t)
		inv.Issue(nil)
		if err := inv.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if err := inv.Cancel(); !errors.Is(err, ErrInvoiceNotCancellable) {
			t.Errorf("second Cancel error = %v, want ErrInvoiceNotCancellable", err)
		}
	})
}

func TestSellerIDsAndItems(t *testing.T) {
	inv := newTestInvoice(t)
	if _, err := inv.AddItem(AddItemParams{
		Name: "shipping", ItemType: InvoiceItemTypeService, SellerID: 7,
		Quantity: 1, UnitPrice: dec("50000"),
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := inv.AddItem(AddItemParams{
		Name: "mouse", ItemType: InvoiceItemTypeProduct, SellerID: 9,
		Quantity: 1, UnitPrice: dec("200000"),
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	sellers := inv.SellerIDs()
	if len(sellers) != 2 {
		t.Fatalf("SellerIDs = %v, want two sellers", sellers)
	}
	// Service lines never contribute to a seller's product total.
	if got := len(inv.ItemsOfSeller(7)); got != 1 {
		t.Errorf("seller 7 product lines = %d, want 1", got)
	}
	if got := len(inv.ItemsOfSeller(9)); got != 1 {
		t.Errorf("seller 9 product lines = %d, want 1", got)
	}
}
