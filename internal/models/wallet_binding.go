package models

import (
	"time"
)

// WalletBinding 钱包与外部身份一对一绑定
// 钱包地址统一小写存储，绑定后除签名审计字段外不可变
type WalletBinding struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	IdentityID    string    `gorm:"size:64;not null;uniqueIndex:uk_wallet_identity" json:"identity_id"`
	WalletAddress string    `gorm:"size:42;not null;uniqueIndex:uk_wallet" json:"wallet_address"`
	Signature     string    `gorm:"size:256" json:"-"`
	Message       string    `gorm:"type:text" json:"-"`
	ConnectedAt   time.Time `gorm:"autoCreateTime" json:"connected_at"`
}

func (WalletBinding) TableName() string {
	return "wallet_bindings"
}
