package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketbill/internal/config"
)

// SandboxName selects the in-process gateway in config.
const SandboxName = "sandbox"

// New picks the gateway implementation by configured name: "sandbox" runs
// in-process, anything else is treated as a real HTTP endpoint.
func New(cfg *config.GatewayConfig) BankingGateway {
	if cfg.Name == SandboxName {
		return NewSandboxGateway(cfg)
	}
	return NewHTTPGateway(cfg)
}

// SandboxGateway is an in-process stand-in for the banking gateway, for
// development and tests. Sessions live in memory and verification approves
// exactly the amount the session was opened with.
type SandboxGateway struct {
	mu          sync.Mutex
	callbackURL string
	sessions    map[string]PaymentSessionRequest
}

func NewSandboxGateway(cfg *config.GatewayConfig) *SandboxGateway {
	return &SandboxGateway{
		callbackURL: cfg.CallbackURL,
		sessions:    make(map[string]PaymentSessionRequest),
	}
}

func (g *SandboxGateway) Name() string {
	return SandboxName
}

func (g *SandboxGateway) CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (*PaymentSession, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("create payment session: empty reference")
	}
	g.mu.Lock()
	g.sessions[req.Reference] = req
	g.mu.Unlock()

	return &PaymentSession{
		Reference:   req.Reference,
		RedirectURL: fmt.Sprintf("%s?reference=%s", g.callbackURL, req.Reference),
	}, nil
}

func (g *SandboxGateway) VerifyPayment(ctx context.Context, reference string) (*PaymentReceipt, error) {
	g.mu.Lock()
	req, ok := g.sessions[reference]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("verify payment: unknown reference %s", reference)
	}

	return &PaymentReceipt{
		Reference:    reference,
		Succeeded:    true,
		Amount:       req.Amount,
		TrackingCode: "SBX-" + reference,
		Message:      "approved by sandbox",
		ProcessedAt:  time.Now(),
	}, nil
}
