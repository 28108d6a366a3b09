package handler

import (
	"errors"
	"strconv"

	"marketbill/internal/config"
	"marketbill/internal/infrastructure/gateway"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/internal/service"
	"marketbill/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler bundles the service dependencies for all routes.
type Handler struct {
	invoiceService    *service.InvoiceService
	walletService     *service.WalletService
	settlementService *service.SettlementService
	revenueService    *service.RevenueService
	withdrawalService *service.WithdrawalService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, bank gateway.BankingGateway) *Handler {
	revenueService := service.NewRevenueService(db, cfg)
	return &Handler{
		invoiceService:    service.NewInvoiceService(db, cfg),
		walletService:     service.NewWalletService(db, cfg),
		settlementService: service.NewSettlementService(db, rdb, cfg, bank),
		revenueService:    revenueService,
		withdrawalService: service.NewWithdrawalService(db, rdb, cfg, revenueService),
	}
}

// businessError maps domain errors onto response codes so clients can react
// without parsing messages.
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvoiceNotFound):
		response.BusinessError(c, response.CodeInvoiceNotFound, err.Error())
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, model.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, model.ErrWalletLocked):
		response.BusinessError(c, response.CodeWalletLocked, err.Error())
	case errors.Is(err, model.ErrCurrencyMismatch):
		response.BusinessError(c, response.CodeCurrencyMismatch, err.Error())
	case errors.Is(err, model.ErrInvoiceAlreadySettled):
		response.BusinessError(c, response.CodeAlreadySettled, err.Error())
	case errors.Is(err, model.ErrTransactionFinalized):
		response.BusinessError(c, response.CodeAlreadySettled, err.Error())
	case errors.Is(err, service.ErrNotInvoiceOwner):
		response.BusinessError(c, response.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrInvoiceNotPayable),
		errors.Is(err, model.ErrInvoiceNotCancellable):
		response.BusinessError(c, response.CodeInvoiceStateInvalid, err.Error())
	case errors.Is(err, service.ErrWithdrawalExceedsAvailable),
		errors.Is(err, repository.ErrWithdrawalNotFound),
		errors.Is(err, repository.ErrWithdrawalStatusInvalid):
		response.BusinessError(c, response.CodeWithdrawalNotAllowed, err.Error())
	case errors.Is(err, model.ErrNonPositiveAmount),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidDiscount):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		response.ParamError(c, name+" parameter is invalid")
		return 0, false
	}
	return value, true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// ============================================================
// Invoice endpoints
// ============================================================

// CreateInvoice creates and issues an invoice.
// POST /api/v1/invoice/create
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), auditFrom(c), &req)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, invoice)
}

// GetInvoice returns one invoice with items and transactions.
// GET /api/v1/invoice/detail?user_id=xxx&number=xxx
func (h *Handler) GetInvoice(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	number := c.Query("number")
	if number == "" {
		response.ParamError(c, "number parameter is required")
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), userID, number)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, invoice)
}

// ListInvoices pages through a user's invoices.
// GET /api/v1/invoice/list?user_id=xxx&page=1&page_size=20
func (h *Handler) ListInvoices(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total":    total,
		"invoices": invoices,
	})
}

type cancelInvoiceRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Number string `json:"number" binding:"required"`
}

// CancelInvoice cancels an unpaid invoice.
// POST /api/v1/invoice/cancel
func (h *Handler) CancelInvoice(c *gin.Context) {
	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), auditFrom(c), req.UserID, req.Number)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, invoice)
}

// ============================================================
// Settlement endpoints
// ============================================================

type payWalletRequest struct {
	UserID        int64  `json:"user_id" binding:"required"`
	InvoiceNumber string `json:"invoice_number" binding:"required"`
}

// PayInvoiceWithWallet settles an invoice from the user's wallet.
// POST /api/v1/pay/wallet
func (h *Handler) PayInvoiceWithWallet(c *gin.Context) {
	var req payWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.settlementService.PayInvoiceWithWallet(c.Request.Context(), auditFrom(c), req.UserID, req.InvoiceNumber)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, result)
}

// StartGatewayPayment opens a banking gateway session for an invoice.
// POST /api/v1/pay/gateway/start
func (h *Handler) StartGatewayPayment(c *gin.Context) {
	var req payWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	session, err := h.settlementService.StartGatewayPayment(c.Request.Context(), auditFrom(c), req.UserID, req.InvoiceNumber)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, session)
}

// GatewayCallback is the banking gateway's verification callback.
// GET /api/v1/pay/gateway/callback?reference=xxx
func (h *Handler) GatewayCallback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		response.ParamError(c, "reference parameter is required")
		return
	}

	result, err := h.settlementService.VerifyGatewayPayment(c.Request.Context(), auditFrom(c), reference)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// Wallet endpoints
// ============================================================

// GetWallet returns the user's wallet, creating it on first use.
// GET /api/v1/wallet/balance?user_id=xxx
func (h *Handler) GetWallet(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}

	wallet, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id":   wallet.UserID,
		"currency":  wallet.Currency,
		"balance":   wallet.Balance,
		"is_locked": wallet.IsLocked,
	})
}

type depositRequest struct {
	UserID    int64           `json:"user_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Reference string          `json:"reference"`
}

// Deposit credits funds into a wallet.
// POST /api/v1/wallet/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		response.ParamError(c, "amount must be greater than zero")
		return
	}

	wallet, err := h.walletService.Deposit(c.Request.Context(), auditFrom(c), req.UserID, req.Amount, req.Reference)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": wallet.UserID,
		"balance": wallet.Balance,
	})
}

// ListWalletTransactions pages through the wallet ledger.
// GET /api/v1/wallet/transactions?user_id=xxx
func (h *Handler) ListWalletTransactions(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	entries, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total":        total,
		"transactions": entries,
	})
}

type lockWalletRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
	Locked *bool `json:"locked" binding:"required"`
}

// SetWalletLock freezes or unfreezes a wallet.
// POST /api/v1/wallet/lock
func (h *Handler) SetWalletLock(c *gin.Context) {
	var req lockWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	wallet, err := h.walletService.SetLocked(c.Request.Context(), auditFrom(c), req.UserID, *req.Locked)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id":   wallet.UserID,
		"is_locked": wallet.IsLocked,
	})
}

// ============================================================
// Seller revenue endpoints
// ============================================================

// SellerRevenueSummary reports a seller's revenue position.
// GET /api/v1/seller/revenue?seller_id=xxx
func (h *Handler) SellerRevenueSummary(c *gin.Context) {
	sellerID, ok := queryInt64(c, "seller_id")
	if !ok {
		return
	}

	summary, err := h.revenueService.Summary(c.Request.Context(), sellerID)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, summary)
}

// ============================================================
// Withdrawal endpoints
// ============================================================

// RequestWithdrawal creates a pending cash-out request.
// POST /api/v1/withdrawal/request
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req service.RequestWithdrawalInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	request, err := h.withdrawalService.Request(c.Request.Context(), auditFrom(c), &req)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, request)
}

type withdrawalActionRequest struct {
	Number string `json:"number" binding:"required"`
	Reason string `json:"reason"`
}

// ProcessWithdrawal settles a pending withdrawal (admin).
// POST /api/v1/withdrawal/process
func (h *Handler) ProcessWithdrawal(c *gin.Context) {
	var req withdrawalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	request, err := h.withdrawalService.Process(c.Request.Context(), auditFrom(c), req.Number)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, request)
}

// RejectWithdrawal declines a pending withdrawal (admin).
// POST /api/v1/withdrawal/reject
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	var req withdrawalActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	request, err := h.withdrawalService.Reject(c.Request.Context(), auditFrom(c), req.Number, req.Reason)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, request)
}

// ListWithdrawals pages through a user's withdrawal requests.
// GET /api/v1/withdrawal/list?user_id=xxx
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := queryInt64(c, "user_id")
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	requests, total, err := h.withdrawalService.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		businessError(c, err)
		return
	}
	response.Success(c, gin.H{
		"total":       total,
		"withdrawals": requests,
	})
}
