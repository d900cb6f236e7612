package repository

import (
	"context"
	"errors"
	"time"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type MappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Create 创建钱包推荐映射，referred_wallet唯一索引保证至多一条
func (r *MappingRepository) Create(ctx context.Context, mapping *models.ReferralMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

// GetByReferred 查询被推荐钱包的映射，未映射时返回nil
func (r *MappingRepository) GetByReferred(ctx context.Context, referredWallet string) (*models.ReferralMapping, error) {
	var mapping models.ReferralMapping
	err := r.db.WithContext(ctx).
		Where("referred_wallet = ?", referredWallet).
		First(&mapping).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &mapping, err
}

// Lock 首笔交易时锁定映射
// 条件更新仅命中locked=false的行，已锁定或未映射时为无操作
func (r *MappingRepository) Lock(ctx context.Context, referredWallet, txHash string, tradeAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReferralMapping{}).
		Where("referred_wallet = ? AND locked = ?", referredWallet, false).
		Updates(map[string]interface{}{
			"locked":           true,
			"first_trade_hash": txHash,
			"first_trade_at":   tradeAt,
		}).Error
}

// ListByReferrer 列出某推荐人名下的全部映射
func (r *MappingRepository) ListByReferrer(ctx context.Context, referrerWallet string) ([]models.ReferralMapping, error) {
	var mappings []models.ReferralMapping
	err := r.db.WithContext(ctx).
		Where("referrer_wallet = ?", referrerWallet).
		Find(&mappings).Error
	return mappings, err
}

// CountByReferrer 统计某推荐人名下被推荐钱包数量
func (r *MappingRepository) CountByReferrer(ctx context.Context, referrerWallet string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralMapping{}).
		Where("referrer_wallet = ?", referrerWallet).
		Count(&count).Error
	return count, err
}

// GetAll 获取全部映射，结算聚合时构建交易者到推荐人的索引
func (r *MappingRepository) GetAll(ctx context.Context) ([]models.ReferralMapping, error) {
	var mappings []models.ReferralMapping
	err := r.db.WithContext(ctx).Find(&mappings).Error
	return mappings, err
}
