package repository

import (
	"context"
	"errors"
	"time"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type SwapRepository struct {
	db *gorm.DB
}

func NewSwapRepository(db *gorm.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// Insert 插入交易事件，返回是否为首次插入
// 重复交易哈希命中唯一索引时静默跳过，不产生任何副作用
func (r *SwapRepository) Insert(ctx context.Context, event *models.SwapEvent) (bool, error) {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByTimeRange 获取时间区间[start, end)内的全部交易事件
func (r *SwapRepository) GetByTimeRange(ctx context.Context, start, end time.Time) ([]models.SwapEvent, error) {
	var events []models.SwapEvent
	err := r.db.WithContext(ctx).
		Where("block_timestamp >= ? AND block_timestamp < ?", start, end).
		Order("block_timestamp ASC").
		Find(&events).Error
	return events, err
}

// GetByTraders 获取一组交易者钱包的全部交易事件
func (r *SwapRepository) GetByTraders(ctx context.Context, wallets []string) ([]models.SwapEvent, error) {
	if len(wallets) == 0 {
		return nil, nil
	}
	var events []models.SwapEvent
	err := r.db.WithContext(ctx).
		Where("trader_wallet IN ?", wallets).
		Find(&events).Error
	return events, err
}

// ExistsByTxHash 判断交易是否已记录
func (r *SwapRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SwapEvent{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}

// CountAll 返回已记录的交易事件总数
func (r *SwapRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SwapEvent{}).
		Count(&count).Error
	return count, err
}
