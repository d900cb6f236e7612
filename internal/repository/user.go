package repository

import (
	"context"
	"errors"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert 创建或更新用户，首次接触时创建，之后仅刷新显示名
func (r *UserRepository) Upsert(ctx context.Context, identityID, displayName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := &models.User{
			IdentityID:  identityID,
			DisplayName: displayName,
		}

		result := tx.Where("identity_id = ?", identityID).
			Assign(models.User{DisplayName: displayName}).
			FirstOrCreate(user)

		return result.Error
	})
}

// GetByIdentity 按外部身份查询用户，不存在时返回nil
func (r *UserRepository) GetByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}
