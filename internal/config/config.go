// Package config loads the application configuration from a file with
// environment-variable overrides and sane defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Lottery  LotteryConfig  `mapstructure:"lottery"`
	Karma    KarmaConfig    `mapstructure:"karma"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LotteryConfig holds the daily allocation parameters.
type LotteryConfig struct {
	Capacity   int `mapstructure:"capacity"`    // lunch slots per cycle
	MinWinners int `mapstructure:"min_winners"` // minimum entrants worth announcing
}

// KarmaConfig holds ledger and redistribution parameters.
type KarmaConfig struct {
	DailyTransferCap int           `mapstructure:"daily_transfer_cap"` // per-cycle peer-gift cap
	EmissionCap      int           `mapstructure:"emission_cap"`       // per-user balance ceiling during emission
	EmissionPool     string        `mapstructure:"emission_pool"`      // user ID holding the redistribution pool
	EmissionInterval time.Duration `mapstructure:"emission_interval"`  // minimum time between emissions
}

// ScheduleConfig holds the daemon's cycle timing.
type ScheduleConfig struct {
	CycleResetHour int           `mapstructure:"cycle_reset_hour"` // local hour when the cycle reopens
	LotteryDelay   time.Duration `mapstructure:"lottery_delay"`    // gap between reset and the draw
	MatchInterval  time.Duration `mapstructure:"match_interval"`   // order-book scan cadence
}

// StorageConfig holds snapshot persistence settings.
type StorageConfig struct {
	FilePath            string        `mapstructure:"file_path"`
	PersistenceInterval time.Duration `mapstructure:"persistence_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file, applying defaults and
// LUNCHROULETTE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("LUNCHROULETTE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lottery.capacity", 5)
	v.SetDefault("lottery.min_winners", 2)

	v.SetDefault("karma.daily_transfer_cap", 5)
	v.SetDefault("karma.emission_cap", 50)
	v.SetDefault("karma.emission_pool", "pool")
	v.SetDefault("karma.emission_interval", "168h")

	v.SetDefault("schedule.cycle_reset_hour", 9)
	v.SetDefault("schedule.lottery_delay", "1h")
	v.SetDefault("schedule.match_interval", "1m")

	v.SetDefault("storage.file_path", "./data/lunchroulette.json")
	v.SetDefault("storage.persistence_interval", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Lottery.Capacity < 1 {
		return fmt.Errorf("lottery.capacity must be at least 1")
	}
	if c.Lottery.MinWinners < 0 {
		return fmt.Errorf("lottery.min_winners must not be negative")
	}

	if c.Karma.DailyTransferCap < 1 {
		return fmt.Errorf("karma.daily_transfer_cap must be at least 1")
	}
	if c.Karma.EmissionCap < 1 {
		return fmt.Errorf("karma.emission_cap must be at least 1")
	}
	if c.Karma.EmissionPool == "" {
		return fmt.Errorf("karma.emission_pool is required")
	}
	if c.Karma.EmissionInterval < time.Hour {
		return fmt.Errorf("karma.emission_interval must be at least 1 hour")
	}

	if c.Schedule.CycleResetHour < 0 || c.Schedule.CycleResetHour > 23 {
		return fmt.Errorf("schedule.cycle_reset_hour must be between 0 and 23")
	}
	if c.Schedule.LotteryDelay < time.Minute {
		return fmt.Errorf("schedule.lottery_delay must be at least 1 minute")
	}
	if c.Schedule.MatchInterval < time.Second {
		return fmt.Errorf("schedule.match_interval must be at least 1 second")
	}

	if c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required")
	}
	if c.Storage.PersistenceInterval < time.Minute {
		return fmt.Errorf("storage.persistence_interval must be at least 1 minute")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}
