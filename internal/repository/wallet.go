package repository

import (
	"context"
	"errors"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Bind 创建钱包绑定，依赖唯一索引保证双向一对一
// 并发注册同一钱包时由数据库约束裁决，不做先读后写
func (r *WalletRepository) Bind(ctx context.Context, binding *models.WalletBinding) error {
	return r.db.WithContext(ctx).Create(binding).Error
}

// GetByIdentity 查询身份已绑定的钱包，未绑定时返回nil
func (r *WalletRepository) GetByIdentity(ctx context.Context, identityID string) (*models.WalletBinding, error) {
	var binding models.WalletBinding
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		First(&binding).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &binding, err
}

// GetByWallet 查询钱包地址归属的绑定，未绑定时返回nil
func (r *WalletRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.WalletBinding, error) {
	var binding models.WalletBinding
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		First(&binding).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &binding, err
}
