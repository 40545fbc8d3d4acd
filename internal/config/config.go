// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Bets      BetsConfig      `mapstructure:"bets"`
	Rob       RobConfig       `mapstructure:"rob"`
	Blackjack BlackjackConfig `mapstructure:"blackjack"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// EconomyConfig holds the starting stake and the daily reward.
type EconomyConfig struct {
	StartingBalance int64 `mapstructure:"starting_balance"`
	DailyReward     int64 `mapstructure:"daily_reward"`
	DailyBonus      int64 `mapstructure:"daily_bonus"`
	BonusEvery      int   `mapstructure:"bonus_every"`
	// UTCOffsetHours fixes the zone in which calendar days are compared.
	UTCOffsetHours int `mapstructure:"utc_offset_hours"`
}

// BetsConfig holds the house limits.
type BetsConfig struct {
	MaxBet         int64 `mapstructure:"max_bet"`
	NegativeMaxBet int64 `mapstructure:"negative_max_bet"`
}

// RobConfig holds robbery configuration.
type RobConfig struct {
	MinAmount      int64 `mapstructure:"min_amount"`
	MaxAmount      int64 `mapstructure:"max_amount"`
	SuccessPercent int   `mapstructure:"success_percent"`
}

// BlackjackConfig holds table sizes and waits.
type BlackjackConfig struct {
	MaxPlayers    int           `mapstructure:"max_players"`
	MinPlayers    int           `mapstructure:"min_players"`
	LobbyTimeout  time.Duration `mapstructure:"lobby_timeout"`
	BetTimeout    time.Duration `mapstructure:"bet_timeout"`
	TurnTimeout   time.Duration `mapstructure:"turn_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// Journal drivers.
const (
	JournalMemory   = "memory"
	JournalPostgres = "postgres"
)

// JournalConfig selects where transactions are journaled.
type JournalConfig struct {
	Driver         string `mapstructure:"driver"`
	MemoryCapacity int    `mapstructure:"memory_capacity"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. ECONOMY_STARTING_BALANCE, BLACKJACK_TURN_TIMEOUT, DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; defaults and env vars can provide everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Economy.BonusEvery < 1:
		return fmt.Errorf("economy.bonus_every must be at least 1")
	case c.Economy.UTCOffsetHours < -12 || c.Economy.UTCOffsetHours > 14:
		return fmt.Errorf("economy.utc_offset_hours %d out of range", c.Economy.UTCOffsetHours)
	case c.Bets.MaxBet <= 0 || c.Bets.NegativeMaxBet <= 0:
		return fmt.Errorf("bet limits must be positive")
	case c.Rob.MinAmount <= 0 || c.Rob.MaxAmount < c.Rob.MinAmount:
		return fmt.Errorf("rob amount range [%d, %d] is invalid", c.Rob.MinAmount, c.Rob.MaxAmount)
	case c.Rob.SuccessPercent < 0 || c.Rob.SuccessPercent > 100:
		return fmt.Errorf("rob.success_percent must be within 0..100")
	case c.Blackjack.MinPlayers < 1 || c.Blackjack.MaxPlayers < c.Blackjack.MinPlayers:
		return fmt.Errorf("blackjack player range [%d, %d] is invalid", c.Blackjack.MinPlayers, c.Blackjack.MaxPlayers)
	case c.Journal.Driver != JournalMemory && c.Journal.Driver != JournalPostgres:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	case c.Journal.MemoryCapacity < 1:
		return fmt.Errorf("journal.memory_capacity must be at least 1")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")

	// Economy defaults
	v.SetDefault("economy.starting_balance", 2000)
	v.SetDefault("economy.daily_reward", 100)
	v.SetDefault("economy.daily_bonus", 100)
	v.SetDefault("economy.bonus_every", 7)
	v.SetDefault("economy.utc_offset_hours", 9)

	v.SetDefault("bets.max_bet", 5000)
	v.SetDefault("bets.negative_max_bet", 500)

	v.SetDefault("rob.min_amount", 100)
	v.SetDefault("rob.max_amount", 500)
	v.SetDefault("rob.success_percent", 50)

	// Blackjack defaults
	v.SetDefault("blackjack.max_players", 4)
	v.SetDefault("blackjack.min_players", 2)
	v.SetDefault("blackjack.lobby_timeout", "60s")
	v.SetDefault("blackjack.bet_timeout", "60s")
	v.SetDefault("blackjack.turn_timeout", "60s")
	v.SetDefault("blackjack.idle_timeout", "10m")
	v.SetDefault("blackjack.sweep_schedule", "@every 1m")

	v.SetDefault("journal.driver", JournalMemory)
	v.SetDefault("journal.memory_capacity", 10000)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
}
