package repository

import (
	"context"
	"errors"
	"time"

	"marketbill/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound      = errors.New("withdrawal request not found")
	ErrWithdrawalStatusInvalid = errors.New("withdrawal status transition not allowed")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, request *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(request).Error
}

func (r *WithdrawalRepository) GetByNumber(ctx context.Context, number string) (*model.WithdrawalRequest, error) {
	var request model.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("number = ?", number).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &request, nil
}

// UpdateStatus moves a request along the state machine with a conditional
// update, so two admins processing the same request cannot both win.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, number, fromStatus, toStatus, rejectReason string) error {
	if !model.CanWithdrawalTransition(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.WithdrawalStatusProcessed {
		now := time.Now()
		updates["processed_at"] = &now
	}
	if rejectReason != "" {
		updates["reject_reason"] = rejectReason
	}

	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("number = ? AND status = ?", number, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}
	return nil
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.WithdrawalRequest, int64, error) {
	var requests []*model.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WithdrawalRequest{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error

	return requests, total, err
}

func (r *WithdrawalRepository) sumByStatus(ctx context.Context, userID int64, requestType string, statuses []string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Select("SUM(amount)").
		Where("user_id = ? AND request_type = ? AND status IN ?", userID, requestType, statuses).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// SumProcessedSellerRevenue totals the seller's settled cash-outs. Only
// Processed requests of type SellerRevenue count.
func (r *WithdrawalRepository) SumProcessedSellerRevenue(ctx context.Context, sellerID int64) (decimal.Decimal, error) {
	return r.sumByStatus(ctx, sellerID, model.WithdrawalTypeSellerRevenue,
		[]string{model.WithdrawalStatusProcessed})
}

// SumPendingSellerRevenue totals requests still holding part of the seller's
// balance.
func (r *WithdrawalRepository) SumPendingSellerRevenue(ctx context.Context, sellerID int64) (decimal.Decimal, error) {
	return r.sumByStatus(ctx, sellerID, model.WithdrawalTypeSellerRevenue,
		[]string{model.WithdrawalStatusPending})
}
