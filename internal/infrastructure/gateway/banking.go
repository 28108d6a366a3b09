package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketbill/internal/config"

	"github.com/shopspring/decimal"
)

// BankingGateway is the port for the external online payment provider. The
// provider mechanics (signing, receipts, retries on its side) are outside the
// billing core; the core only needs a session to redirect to and a
// verification verdict for a reference.
type BankingGateway interface {
	// CreatePaymentSession registers a payment of the given amount and
	// returns the session the buyer is redirected to.
	CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error)
	// VerifyPayment confirms whether the gateway actually captured the
	// amount for the given reference.
	VerifyPayment(ctx context.Context, reference string) (*PaymentReceipt, error)
	// Name identifies the gateway on payment transactions.
	Name() string
}

type PaymentSessionRequest struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	CallbackURL string          `json:"callback_url"`
}

type PaymentSession struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

type PaymentReceipt struct {
	Reference    string          `json:"reference"`
	Succeeded    bool            `json:"succeeded"`
	Amount       decimal.Decimal `json:"amount"`
	TrackingCode string          `json:"tracking_code"`
	Message      string          `json:"message"`
	ProcessedAt  time.Time       `json:"processed_at"`
}

// HTTPGateway talks JSON to a PSP-style banking gateway endpoint.
type HTTPGateway struct {
	cfg    *config.GatewayConfig
	client *http.Client
}

func NewHTTPGateway(cfg *config.GatewayConfig) *HTTPGateway {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Name() string {
	return g.cfg.Name
}

func (g *HTTPGateway) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = g.cfg.CallbackURL
	}
	var session PaymentSession
	if err := g.post(ctx, "/v1/sessions", req, &session); err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}
	return &session, nil
}

func (g *HTTPGateway) VerifyPayment(ctx context.Context, reference string) (*PaymentReceipt, error) {
	var receipt PaymentReceipt
	payload := map[string]string{
		"merchant_id": g.cfg.MerchantID,
		"reference":   reference,
	}
	if err := g.post(ctx, "/v1/verify", payload, &receipt); err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	return &receipt, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-ID", g.cfg.MerchantID)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
