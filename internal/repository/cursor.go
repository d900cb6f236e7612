package repository

import (
	"context"
	"errors"

	"cope-referral-system/internal/models"

	"gorm.io/gorm"
)

type CursorRepository struct {
	db *gorm.DB
}

func NewCursorRepository(db *gorm.DB) *CursorRepository {
	return &CursorRepository{db: db}
}

// GetLastProcessed 获取持久化的扫描游标，无记录时返回0
func (r *CursorRepository) GetLastProcessed(ctx context.Context, chainName string) (int64, error) {
	var cursor models.IngestionCursor
	err := r.db.WithContext(ctx).
		Where("chain_name = ?", chainName).
		First(&cursor).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cursor.LastProcessedBlock, err
}

// Advance 推进游标，仅在整批处理完成后调用，游标单调递增
func (r *CursorRepository) Advance(ctx context.Context, chainName string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.IngestionCursor
		err := tx.Where("chain_name = ?", chainName).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			cursor := &models.IngestionCursor{
				ChainName:          chainName,
				LastProcessedBlock: blockNumber,
			}
			return tx.Create(cursor).Error
		}

		if err != nil {
			return err
		}

		if blockNumber <= existing.LastProcessedBlock {
			return nil
		}

		return tx.Model(&existing).Update("last_processed_block", blockNumber).Error
	})
}
