package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settlement 代表一場拍賣的最終結果
// 成交、流標、取消都會各留一筆，成交時記錄得標者與成交價
type Settlement struct {
	gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;<-:create"`
	Outcome   string    `gorm:"type:varchar(32);not null;<-:create"`
	Winner    *string   `gorm:"type:varchar(255);<-:create"`
	Amount    uint64    `gorm:"type:bigint;not null;default:0;<-:create"`
	ClosedAt  uint64    `gorm:"type:bigint;not null;<-:create"`
	Reason    string    `gorm:"type:text;<-:create"`

	// 外鍵關聯
	Listing Listing
}
