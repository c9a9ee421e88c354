package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BidRecord 代表拍賣的出價紀錄
// 記錄每次競標的金額、競標者和發生時刻
type BidRecord struct {
	*gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Bidder    string    `gorm:"type:varchar(255);not null;<-:create"`
	Amount    uint64    `gorm:"type:bigint;not null;<-:create"`
	PlacedAt  uint64    `gorm:"type:bigint;not null;<-:create"`

	// 外鍵關聯
	Listing Listing
}
