package service

import (
	"context"
	"fmt"
	"log"

	"marketbill/internal/config"
	"marketbill/internal/model"
	"marketbill/internal/repository"
	"marketbill/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService manages wallet balances outside of invoice settlement:
// deposits, statements and compliance locks.
type WalletService struct {
	db         *gorm.DB
	cfg        *config.Config
	walletRepo *repository.WalletRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:         db,
		cfg:        cfg,
		walletRepo: repository.NewWalletRepository(db),
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*model.WalletAccount, error) {
	return s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.DefaultCurrency)
}

// Deposit credits funds into the wallet, e.g. after an external top-up.
func (s *WalletService) Deposit(ctx context.Context, audit model.AuditInfo, userID int64, amount decimal.Decimal, reference string) (*model.WalletAccount, error) {
	if _, err := s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.DefaultCurrency); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.Mutate(ctx, userID, func(tx *gorm.DB, wallet *model.WalletAccount) error {
		_, err := wallet.Credit(model.EntryParams{
			Number:      idgen.GenerateWalletTransactionNumber(),
			Amount:      amount,
			Purpose:     model.WalletPurposeDeposit,
			Status:      model.WalletTransactionStatusSucceeded,
			Reference:   reference,
			Description: fmt.Sprintf("deposit by user %d", audit.ActorID),
			OccurredAt:  audit.At,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Wallet] deposit ok: user=%d, amount=%s, balance=%s",
		userID, amount.String(), wallet.Balance.String())
	return wallet, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.walletRepo.ListTransactions(ctx, wallet.ID, page, pageSize)
}

// SetLocked freezes or unfreezes a wallet. While locked, both debits and
// credits are rejected by the aggregate.
func (s *WalletService) SetLocked(ctx context.Context, audit model.AuditInfo, userID int64, locked bool) (*model.WalletAccount, error) {
	wallet, err := s.walletRepo.Mutate(ctx, userID, func(tx *gorm.DB, wallet *model.WalletAccount) error {
		wallet.IsLocked = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Wallet] lock state changed: user=%d, locked=%v, by=%d", userID, locked, audit.ActorID)
	return wallet, nil
}
