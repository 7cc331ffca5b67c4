package bootstrap

import (
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	RedisUrl             string `mapstructure:"REDIS_URL"`
	MongoUri             string `mapstructure:"MONGO_URI"`
	IsLocalCors          bool   `mapstructure:"LOCAL_CORS"`
	PageLimitRooms       int    `mapstructure:"PAGE_LIMIT_ROOMS"`
	PageLimitLeaderboard int    `mapstructure:"PAGE_LIMIT_LEADERBOARD"`

	// Liveness tuning, all in seconds. Stale threshold is 4x the heartbeat
	// interval when left at zero.
	HeartbeatSeconds     int `mapstructure:"HEARTBEAT_SECONDS"`
	StaleAfterSeconds    int `mapstructure:"STALE_AFTER_SECONDS"`
	FinishedGraceSeconds int `mapstructure:"FINISHED_GRACE_SECONDS"`
	IdleRoomSeconds      int `mapstructure:"IDLE_ROOM_SECONDS"`

	// Delay between the player_moved broadcast and the turn_changed
	// broadcast that follows it, in milliseconds. Gives every replica time
	// to apply the position update first.
	TurnDelayMillis int `mapstructure:"TURN_DELAY_MILLIS"`

	BotThinkMillis int `mapstructure:"BOT_THINK_MILLIS"`
}

func Setup(cfgPath string) (*Config, error) {
	viper.SetConfigFile(cfgPath)

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.PageLimitRooms == 0 {
		cfg.PageLimitRooms = 20
	}
	if cfg.PageLimitLeaderboard == 0 {
		cfg.PageLimitLeaderboard = 50
	}
	if cfg.HeartbeatSeconds == 0 {
		cfg.HeartbeatSeconds = 30
	}
	if cfg.StaleAfterSeconds == 0 {
		cfg.StaleAfterSeconds = 4 * cfg.HeartbeatSeconds
	}
	if cfg.FinishedGraceSeconds == 0 {
		cfg.FinishedGraceSeconds = 5
	}
	if cfg.IdleRoomSeconds == 0 {
		cfg.IdleRoomSeconds = 600
	}
	if cfg.TurnDelayMillis == 0 {
		cfg.TurnDelayMillis = 800
	}
	if cfg.BotThinkMillis == 0 {
		cfg.BotThinkMillis = 1500
	}
}
