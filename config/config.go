package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type GameConfig struct {
	// DisconnectGrace is how long a seated player may stay disconnected
	// during setup/playing before forfeiting. Must be shorter than
	// IdleRoomTTL so the sweep never races an open grace window.
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
	IdleRoomTTL     time.Duration `mapstructure:"idle_room_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

type ArchiveConfig struct {
	// Driver selects the match archive backend:
	// "memory", "postgres", "postgres_raw" or "redis".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	HistoryLimit int           `mapstructure:"history_limit"`
	MatchTTL     time.Duration `mapstructure:"match_ttl"`
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")

	viper.SetDefault("game.disconnect_grace", 30*time.Second)
	viper.SetDefault("game.idle_room_ttl", 10*time.Minute)
	viper.SetDefault("game.sweep_interval", time.Minute)

	viper.SetDefault("archive.driver", "memory")
	viper.SetDefault("archive.postgres.host", "localhost")
	viper.SetDefault("archive.postgres.port", 5432)
	viper.SetDefault("archive.postgres.user", "postgres")
	viper.SetDefault("archive.postgres.dbname", "numble")
	viper.SetDefault("archive.redis.addr", "localhost:6379")
	viper.SetDefault("archive.redis.history_limit", 100)
	viper.SetDefault("archive.redis.match_ttl", time.Duration(0))
}

// LoadConfig reads config.yaml from path, falling back to defaults when no
// file is present. Environment variables override file values
// (e.g. ARCHIVE_DRIVER=redis).
func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
