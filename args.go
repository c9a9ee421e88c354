package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bitmarket/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("instance-id", "", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-consumer-group", "bitmarket-archive", "")

	// redis stream keys
	pflag.String("redis-stream-key-for-events", "bitmarket-shared-event-stream", "")

	// engine config
	pflag.Duration("engine-tick-interval", time.Second, "")
	pflag.Uint64("engine-auction-time-to-close", 10, "")
	pflag.Uint64("engine-minimum-auction-duration", 1, "")
	pflag.Uint32("engine-max-royalty-fee-percent", 20, "")
	pflag.Uint32("engine-network-fee-percent", 1, "")
	pflag.Bool("engine-allow-buy-now", true, "")
	pflag.Uint64("engine-settlement-retry-delay", 10, "")
	pflag.String("engine-network-treasury", "treasury", "")
	pflag.String("engine-administrator", "root", "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BITMARKET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	instanceID := viper.GetString("instance-id")
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			ID: instanceID,
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:          viper.GetString("redis-addr"),
				Password:      viper.GetString("redis-password"),
				DB:            viper.GetInt("redis-db"),
				ConsumerGroup: viper.GetString("redis-consumer-group"),
				StreamKeys: api.RedisStreamKeys{
					Events: viper.GetString("redis-stream-key-for-events"),
				},
			},
			Engine: api.EngineConfig{
				TickInterval:           viper.GetDuration("engine-tick-interval"),
				AuctionTimeToClose:     viper.GetUint64("engine-auction-time-to-close"),
				MinimumAuctionDuration: viper.GetUint64("engine-minimum-auction-duration"),
				MaxRoyaltyFeePercent:   viper.GetUint32("engine-max-royalty-fee-percent"),
				NetworkFeePercent:      viper.GetUint32("engine-network-fee-percent"),
				AllowBuyNow:            viper.GetBool("engine-allow-buy-now"),
				SettlementRetryDelay:   viper.GetUint64("engine-settlement-retry-delay"),
				NetworkTreasury:        viper.GetString("engine-network-treasury"),
				Administrator:          viper.GetString("engine-administrator"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" &&
		args.ServerConfig.Redis.Addr != "" &&
		args.ServerConfig.DB.Host != "" &&
		args.ServerConfig.Engine.TickInterval > 0 &&
		args.ServerConfig.Engine.MinimumAuctionDuration > 0
}
