package models

import (
	"time"
)

type SwapType string

const (
	SwapTypeBuy  SwapType = "buy"
	SwapTypeSell SwapType = "sell"
)

// SwapEvent 已分类的代币交易事件，交易哈希唯一键作为去重锚点
// 金额字段以代币最小单位的十进制字符串存储
type SwapEvent struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash         string    `gorm:"size:66;not null;uniqueIndex:uk_tx" json:"tx_hash"`
	TraderWallet   string    `gorm:"size:42;not null;index:idx_trader_time" json:"trader_wallet"`
	SwapType       SwapType  `gorm:"size:8;not null" json:"swap_type"`
	TokenAmount    string    `gorm:"type:decimal(65,0);not null" json:"token_amount"`
	NativeAmount   string    `gorm:"type:decimal(65,0);not null;default:0" json:"native_amount"`
	TaxAmount      string    `gorm:"type:decimal(65,0);not null" json:"tax_amount"`
	BlockNumber    int64     `gorm:"not null;index" json:"block_number"`
	BlockTimestamp time.Time `gorm:"not null;index:idx_trader_time" json:"block_timestamp"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SwapEvent) TableName() string {
	return "swap_events"
}
