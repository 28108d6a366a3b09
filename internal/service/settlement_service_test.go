package service

import (
	"errors"
	"testing"
	"time"

	"marketbill/internal/model"
)

func payableInvoice(t *testing.T) *model.Invoice {
	t.Helper()
	inv := model.NewInvoice("INV1", 42, "IRR", time.Now())
	if _, err := inv.AddItem(model.AddItemParams{
		Name: "keyboard", ItemType: model.InvoiceItemTypeProduct, SellerID: 7,
		Quantity: 1, UnitPrice: dec("800000"),
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	inv.Issue(nil)
	return inv
}

func TestValidateSettlement(t *testing.T) {
	t.Run("payable", func(t *testing.T) {
		inv := payableInvoice(t)
		if err := validateSettlement(inv, 42); err != nil {
			t.Errorf("validateSettlement: %v", err)
		}
	})

	t.Run("wrong owner", func(t *testing.T) {
		inv := payableInvoice(t)
		if err := validateSettlement(inv, 43); !errors.Is(err, ErrNotInvoiceOwner) {
			t.Errorf("error = %v, want ErrNotInvoiceOwner", err)
		}
	})

	t.Run("draft", func(t *testing.T) {
		inv := model.NewInvoice("INV1", 42, "IRR", time.Now())
		if err := validateSettlement(inv, 42); !errors.Is(err, ErrInvoiceNotPayable) {
			t.Errorf("error = %v, want ErrInvoiceNotPayable", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		inv := payableInvoice(t)
		if err := inv.Cancel(); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if err := validateSettlement(inv, 42); !errors.Is(err, ErrInvoiceNotPayable) {
			t.Errorf("error = %v, want ErrInvoiceNotPayable", err)
		}
	})

	t.Run("already settled", func(t *testing.T) {
		inv := payableInvoice(t)
		if _, err := inv.AddTransaction(model.AddTransactionParams{
			Number: "PAY1", Amount: dec("800000"), Status: model.PaymentStatusSucceeded,
		}); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
		if err := validateSettlement(inv, 42); !errors.Is(err, model.ErrInvoiceAlreadySettled) {
			t.Errorf("error = %v, want ErrInvoiceAlreadySettled", err)
		}
	})

	t.Run("overdue is still payable", func(t *testing.T) {
		inv := payableInvoice(t)
		inv.Status = model.InvoiceStatusOverdue
		if err := validateSettlement(inv, 42); err != nil {
			t.Errorf("validateSettlement: %v", err)
		}
	})
}

func TestPrepareGatewayCharge(t *testing.T) {
	settings := &model.FinancialSettings{VATRatePercent: dec("9")}

	t.Run("applies tax before quoting the amount", func(t *testing.T) {
		inv := payableInvoice(t)

		amount, err := prepareGatewayCharge(inv, settings, 42)
		if err != nil {
			t.Fatalf("prepareGatewayCharge: %v", err)
		}
		// 800000 + 9% VAT
		if !amount.Equal(dec("872000")) {
			t.Errorf("charge = %s, want 872000", amount)
		}
		if !inv.TaxAmount.Equal(dec("72000")) {
			t.Errorf("tax = %s, want 72000", inv.TaxAmount)
		}
		if !amount.Equal(inv.OutstandingAmount) {
			t.Errorf("charge %s != outstanding %s", amount, inv.OutstandingAmount)
		}

		// A receipt with no captured amount settles exactly the quoted
		// charge, leaving nothing uncollected.
		txn, err := inv.AddTransaction(model.AddTransactionParams{
			Number: "PAY1", Amount: amount, Method: model.PaymentMethodOnlineGateway,
			Status: model.PaymentStatusPending, Reference: "ref-1", Gateway: "acmebank",
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
		txn.ID = 3
		if _, err := inv.UpdateTransaction(3, model.UpdateTransactionParams{
			Status: model.PaymentStatusSucceeded,
		}); err != nil {
			t.Fatalf("UpdateTransaction: %v", err)
		}
		if inv.Status != model.InvoiceStatusPaid {
			t.Errorf("status = %s, want PAID", inv.Status)
		}
		if !inv.PaidAmount.Equal(amount) {
			t.Errorf("paid = %s, want charged %s", inv.PaidAmount, amount)
		}
		if !inv.OutstandingAmount.IsZero() {
			t.Errorf("outstanding = %s, want 0", inv.OutstandingAmount)
		}
	})

	t.Run("taxed invoice is not taxed again", func(t *testing.T) {
		inv := payableInvoice(t)
		if err := inv.ApplyTax(dec("9")); err != nil {
			t.Fatalf("ApplyTax: %v", err)
		}

		amount, err := prepareGatewayCharge(inv, settings, 42)
		if err != nil {
			t.Fatalf("prepareGatewayCharge: %v", err)
		}
		if !amount.Equal(dec("872000")) {
			t.Errorf("charge = %s, want 872000", amount)
		}
	})

	t.Run("precondition failures pass through", func(t *testing.T) {
		inv := payableInvoice(t)
		if _, err := prepareGatewayCharge(inv, settings, 43); !errors.Is(err, ErrNotInvoiceOwner) {
			t.Errorf("error = %v, want ErrNotInvoiceOwner", err)
		}
	})
}
