package models

import (
	"time"
)

// IngestionCursor 持久化的链扫描游标，重启后从此处恢复
type IngestionCursor struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainName          string    `gorm:"size:50;not null;uniqueIndex:uk_chain" json:"chain_name"`
	LastProcessedBlock int64     `gorm:"not null" json:"last_processed_block"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (IngestionCursor) TableName() string {
	return "ingestion_cursors"
}
