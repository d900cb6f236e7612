package repository

import (
	"context"
	"errors"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Create(ctx context.Context, code *models.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// GetByWallet 查询钱包已生成的推荐码，不存在时返回nil
func (r *CodeRepository) GetByWallet(ctx context.Context, referrerWallet string) (*models.ReferralCode, error) {
	var code models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("referrer_wallet = ?", referrerWallet).
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &code, err
}

// GetByCode 按推荐码查询，不存在时返回nil
func (r *CodeRepository) GetByCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	var record models.ReferralCode
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &record, err
}

// CodeExists 判断推荐码是否已被占用，用于碰撞重试
func (r *CodeRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}
