package repository

import (
	"context"
	"errors"

	"marketbill/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrWalletNotFound = errors.New("wallet not found")

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.WalletAccount, error) {
	var wallet model.WalletAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.WalletAccount, error) {
	var wallet model.WalletAccount
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64, currency string) (*model.WalletAccount, error) {
	wallet, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := model.NewWalletAccount(userID, currency)
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// Save persists the wallet balance under a version guard and inserts any new
// ledger entries. The in-memory aggregate already enforced the balance
// precondition; the version guard additionally rejects a concurrent writer
// that slipped past the row lock.
func (r *WalletRepository) Save(ctx context.Context, tx *gorm.DB, wallet *model.WalletAccount) error {
	result := tx.WithContext(ctx).
		Model(&model.WalletAccount{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":   wallet.Balance,
			"is_locked": wallet.IsLocked,
			"version":   gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	wallet.Version++

	for i := range wallet.Transactions {
		entry := &wallet.Transactions[i]
		if entry.ID != 0 {
			continue
		}
		entry.WalletID = wallet.ID
		if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
			return err
		}
	}
	return nil
}

// Mutate runs fn against the locked wallet and saves it, in one transaction.
func (r *WalletRepository) Mutate(ctx context.Context, userID int64, fn func(tx *gorm.DB, wallet *model.WalletAccount) error) (*model.WalletAccount, error) {
	var wallet *model.WalletAccount
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = r.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, wallet); err != nil {
			return err
		}
		return r.Save(ctx, tx, wallet)
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// CreateShareEntry inserts a seller-share ledger entry only if no entry for
// the same (wallet, invoice, purpose) exists yet. Returns false when the
// entry was already there, which is how a redelivered paid-invoice event
// becomes a no-op.
func (r *WalletRepository) CreateShareEntry(ctx context.Context, tx *gorm.DB, entry *model.WalletTransaction) (bool, error) {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID int64, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	var entries []*model.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("wallet_id = ?", walletID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

// SumByPurpose totals Succeeded entries of one purpose, as a reconciliation
// cross-check against the running seller revenue ledger.
func (r *WalletRepository) SumByPurpose(ctx context.Context, walletID int64, entryType, purpose string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Select("SUM(amount)").
		Where("wallet_id = ? AND type = ? AND purpose = ? AND status = ?",
			walletID, entryType, purpose, model.WalletTransactionStatusSucceeded).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
