package models

import (
	"time"
)

// ReferralMapping 被推荐钱包到推荐人钱包的映射
// 每个被推荐钱包至多一条记录，首笔交易后锁定，锁定后推荐人不可变
type ReferralMapping struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferredWallet string     `gorm:"size:42;not null;uniqueIndex:uk_referred" json:"referred_wallet"`
	ReferrerWallet string     `gorm:"size:42;not null;index:idx_referrer" json:"referrer_wallet"`
	Locked         bool       `gorm:"not null;default:false" json:"locked"`
	FirstTradeHash string     `gorm:"size:66" json:"first_trade_hash"`
	FirstTradeAt   *time.Time `json:"first_trade_at"`
	MappedAt       time.Time  `gorm:"autoCreateTime" json:"mapped_at"`
}

func (ReferralMapping) TableName() string {
	return "wallet_referrer_mappings"
}
