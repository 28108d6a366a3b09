package gateway

import (
	"context"
	"strings"
	"testing"

	"marketbill/internal/config"

	"github.com/shopspring/decimal"
)

func sandboxConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		Name:        SandboxName,
		CallbackURL: "http://localhost:8080/api/v1/pay/gateway/callback",
	}
}

func TestNewPicksImplementationByName(t *testing.T) {
	if _, ok := New(sandboxConfig()).(*SandboxGateway); !ok {
		t.Error("sandbox config did not yield the sandbox gateway")
	}
	if _, ok := New(&config.GatewayConfig{Name: "acmebank"}).(*HTTPGateway); !ok {
		t.Error("named gateway config did not yield the HTTP gateway")
	}
}

func TestSandboxSessionRoundTrip(t *testing.T) {
	g := NewSandboxGateway(sandboxConfig())
	ctx := context.Background()

	amount := decimal.RequireFromString("872000")
	session, err := g.CreatePaymentSession(ctx, PaymentSessionRequest{
		Reference: "PAY123",
		Amount:    amount,
		Currency:  "IRR",
	})
	if err != nil {
		t.Fatalf("CreatePaymentSession: %v", err)
	}
	if session.Reference != "PAY123" {
		t.Errorf("session reference = %s, want PAY123", session.Reference)
	}
	if !strings.Contains(session.RedirectURL, "reference=PAY123") {
		t.Errorf("redirect %s does not carry the reference", session.RedirectURL)
	}

	receipt, err := g.VerifyPayment(ctx, "PAY123")
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !receipt.Succeeded {
		t.Error("sandbox receipt not succeeded")
	}
	if !receipt.Amount.Equal(amount) {
		t.Errorf("receipt amount = %s, want the session amount %s", receipt.Amount, amount)
	}
}

func TestSandboxVerifyUnknownReference(t *testing.T) {
	g := NewSandboxGateway(sandboxConfig())
	if _, err := g.VerifyPayment(context.Background(), "PAY999"); err == nil {
		t.Error("unknown reference verified without error")
	}
}

func TestSandboxRejectsEmptyReference(t *testing.T) {
	g := NewSandboxGateway(sandboxConfig())
	if _, err := g.CreatePaymentSession(context.Background(), PaymentSessionRequest{}); err == nil {
		t.Error("empty reference accepted")
	}
}
