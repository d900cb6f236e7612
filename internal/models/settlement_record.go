package models

import (
	"time"
)

// SettlementRecord 每个推荐人每个周期一条结算记录
// (referrer_wallet, period_start) 唯一键防止同周期重复结算
type SettlementRecord struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerWallet    string    `gorm:"size:42;not null;uniqueIndex:uk_referrer_period" json:"referrer_wallet"`
	PeriodStart       time.Time `gorm:"not null;uniqueIndex:uk_referrer_period;index:idx_period" json:"period_start"`
	PeriodEnd         time.Time `gorm:"not null" json:"period_end"`
	TotalTaxGenerated string    `gorm:"type:decimal(65,0);not null" json:"total_tax_generated"`
	ReferralReward    string    `gorm:"type:decimal(65,0);not null" json:"referral_reward"`
	CommunityPool     string    `gorm:"type:decimal(65,0);not null" json:"community_pool_contribution"`
	MerkleRoot        string    `gorm:"size:64" json:"merkle_root"`
	SettledAt         time.Time `gorm:"autoCreateTime" json:"settled_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}
