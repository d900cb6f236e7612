package models

import (
	"time"
)

type ReferralCode struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Code           string    `gorm:"size:16;not null;uniqueIndex:uk_code" json:"code"`
	ReferrerWallet string    `gorm:"size:42;not null;uniqueIndex:uk_referrer" json:"referrer_wallet"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}
