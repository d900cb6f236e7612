package repository

import (
	"context"
	"errors"
	"time"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, record *models.SettlementRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// PeriodSettled 判断某周期是否已有结算记录，用于防止重复结算
func (r *SettlementRepository) PeriodSettled(ctx context.Context, periodStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SettlementRecord{}).
		Where("period_start = ?", periodStart).
		Count(&count).Error
	return count > 0, err
}

// GetByReferrerPeriod 查询推荐人在某周期的结算记录，不存在时返回nil
func (r *SettlementRepository) GetByReferrerPeriod(ctx context.Context, referrerWallet string, periodStart time.Time) (*models.SettlementRecord, error) {
	var record models.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("referrer_wallet = ? AND period_start = ?", referrerWallet, periodStart).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &record, err
}

// ListByPeriod 列出某周期的全部结算记录
func (r *SettlementRepository) ListByPeriod(ctx context.Context, periodStart time.Time) ([]models.SettlementRecord, error) {
	var records []models.SettlementRecord
	err := r.db.WithContext(ctx).
		Where("period_start = ?", periodStart).
		Order("referrer_wallet ASC").
		Find(&records).Error
	return records, err
}
