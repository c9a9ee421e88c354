package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing 代表引擎中一場拍賣的封存紀錄
// 引擎本身只保留進行中的拍賣，歷史資料由封存工作者寫入資料庫
type Listing struct {
	gorm.Model

	ID            uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	EngineID      uint64    `gorm:"type:bigint;not null;uniqueIndex;<-:create"`
	Seller        string    `gorm:"type:varchar(255);not null;<-:create"`
	ItemKey       string    `gorm:"type:varchar(255);not null;<-:create"`
	ListingType   string    `gorm:"type:varchar(32);not null;<-:create"`
	Metaverse     *uint64   `gorm:"type:bigint;<-:create"`
	InitialAmount uint64    `gorm:"type:bigint;not null;<-:create"`
	Memo          string    `gorm:"type:text;<-:create"`
	Status        string    `gorm:"type:varchar(32);not null;default:'open'"`

	// 外鍵關聯
	BidRecords []BidRecord `gorm:"foreignKey:ListingID"`
	Settlement *Settlement `gorm:"foreignKey:ListingID"`
}
