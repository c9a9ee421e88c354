package api

import "time"

type ServerConfig struct {
	// ID 是服務實例的識別，也作為consumer group的consumer名稱
	ID string

	DB     DBConfig
	Redis  RedisConfig
	Engine EngineConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	ConsumerGroup string
	StreamKeys    RedisStreamKeys
}

type RedisStreamKeys struct {
	Events string
}

// EngineConfig 對應引擎的組態，費率以百分比表示
type EngineConfig struct {
	TickInterval           time.Duration
	AuctionTimeToClose     uint64
	MinimumAuctionDuration uint64
	MaxRoyaltyFeePercent   uint32
	NetworkFeePercent      uint32
	AllowBuyNow            bool
	SettlementRetryDelay   uint64
	NetworkTreasury        string
	Administrator          string
}
