package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"marketbill/internal/config"
	"marketbill/internal/infrastructure/lock"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrWithdrawalExceedsAvailable = errors.New("withdrawal amount exceeds available revenue")

// WithdrawalService runs the Pending -> Processed | Rejected lifecycle of
// cash-out requests. Processing debits the seller's wallet and emits the
// processed event in one transaction.
type WithdrawalService struct {
	db             *gorm.DB
	redisClient    *redis.Client
	cfg            *config.Config
	withdrawalRepo *repository.WithdrawalRepository
	walletRepo     *repository.WalletRepository
	outboxRepo     *repository.OutboxRepository
	revenueService *RevenueService
}

func NewWithdrawalService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, revenueService *RevenueService) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		redisClient:    redisClient,
		cfg:            cfg,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		walletRepo:     repository.NewWalletRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		revenueService: revenueService,
	}
}

type RequestWithdrawalInput struct {
	UserID      int64           `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	RequestType string          `json:"request_type" binding:"required"`
	BankName    string          `json:"bank_name" binding:"required"`
	IBAN        string          `json:"iban" binding:"required"`
}

// Request creates a Pending withdrawal. Seller-revenue requests are capped by
// the seller's available (credited minus withdrawn minus held) amount.
func (s *WithdrawalService) Request(ctx context.Context, audit model.AuditInfo, input *RequestWithdrawalInput) (*model.WithdrawalRequest, error) {
	if !input.Amount.IsPositive() {
		return nil, model.ErrNonPositiveAmount
	}

	if input.RequestType == model.WithdrawalTypeSellerRevenue {
		available, err := s.revenueService.AvailableWithdrawalAmount(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if input.Amount.GreaterThan(available) {
			return nil, ErrWithdrawalExceedsAvailable
		}
	}

	request := &model.WithdrawalRequest{
		Number:      idgen.GenerateWithdrawalNumber(),
		UserID:      input.UserID,
		Amount:      input.Amount,
		RequestType: input.RequestType,
		Status:      model.WithdrawalStatusPending,
		BankName:    input.BankName,
		IBAN:        input.IBAN,
	}
	if err := s.withdrawalRepo.Create(ctx, nil, request); err != nil {
		return nil, fmt.Errorf("create withdrawal request: %w", err)
	}

	log.Printf("[Withdrawal] requested: number=%s, user=%d, amount=%s",
		request.Number, input.UserID, input.Amount.String())
	return request, nil
}

// Process settles a pending request: it debits the wallet, marks the request
// Processed and records the integration event, atomically. The per-request
// lock keeps two operators from racing past the status guard.
func (s *WithdrawalService) Process(ctx context.Context, audit model.AuditInfo, number string) (*model.WithdrawalRequest, error) {
	withdrawalLock := lock.NewWithdrawalLock(s.redisClient, number, uuid.NewString())
	if err := withdrawalLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("system busy, please retry: %w", err)
	}
	defer withdrawalLock.Unlock(ctx)

	request, err := s.withdrawalRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if request.Status != model.WithdrawalStatusPending {
		return nil, repository.ErrWithdrawalStatusInvalid
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.UpdateStatus(ctx, tx, number,
			model.WithdrawalStatusPending, model.WithdrawalStatusProcessed, ""); err != nil {
			return err
		}

		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, request.UserID)
		if err != nil {
			return err
		}
		_, err = wallet.Debit(model.EntryParams{
			Number:      idgen.GenerateWalletTransactionNumber(),
			Amount:      request.Amount,
			Purpose:     model.WalletPurposeWithdrawal,
			Status:      model.WalletTransactionStatusSucceeded,
			Reference:   request.Number,
			Description: fmt.Sprintf("withdrawal %s processed by %d", request.Number, audit.ActorID),
			OccurredAt:  audit.At,
		})
		if err != nil {
			return err
		}
		if err := s.walletRepo.Save(ctx, tx, wallet); err != nil {
			return err
		}

		return s.writeProcessedEvent(ctx, tx, request)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Withdrawal] processed: number=%s, user=%d, amount=%s",
		number, request.UserID, request.Amount.String())
	return s.withdrawalRepo.GetByNumber(ctx, number)
}

// Reject declines a pending request with a reason. No balance effect.
func (s *WithdrawalService) Reject(ctx context.Context, audit model.AuditInfo, number, reason string) (*model.WithdrawalRequest, error) {
	err := s.withdrawalRepo.UpdateStatus(ctx, nil, number,
		model.WithdrawalStatusPending, model.WithdrawalStatusRejected, reason)
	if err != nil {
		return nil, err
	}

	log.Printf("[Withdrawal] rejected: number=%s, by=%d, reason=%s", number, audit.ActorID, reason)
	return s.withdrawalRepo.GetByNumber(ctx, number)
}

func (s *WithdrawalService) List(ctx context.Context, userID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	return s.withdrawalRepo.ListByUserID(ctx, userID, page, pageSize)
}

// TotalProcessed sums the seller's settled cash-outs.
func (s *WithdrawalService) TotalProcessed(ctx context.Context, sellerID int64) (decimal.Decimal, error) {
	return s.withdrawalRepo.SumProcessedSellerRevenue(ctx, sellerID)
}

func (s *WithdrawalService) writeProcessedEvent(ctx context.Context, tx *gorm.DB, request *model.WithdrawalRequest) error {
	eventID := uuid.NewString()
	payload, err := json.Marshal(map[string]interface{}{
		"event_id": eventID,
		"number":   request.Number,
		"user_id":  request.UserID,
		"amount":   request.Amount.String(),
		"type":     request.RequestType,
	})
	if err != nil {
		return err
	}
	msg := &model.OutboxMessage{
		EventID:    eventID,
		MessageKey: request.Number,
		Topic:      model.TopicWithdrawalProcessed,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}
