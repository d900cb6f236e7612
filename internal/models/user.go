package models

import (
	"time"
)

type User struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	IdentityID  string    `gorm:"size:64;not null;uniqueIndex:uk_identity" json:"identity_id"`
	DisplayName string    `gorm:"size:128" json:"display_name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
