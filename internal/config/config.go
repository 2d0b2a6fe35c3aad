package config

import (
	"fmt"
	"strings"
	"time"

	"tactix/internal/engine"
	"tactix/internal/fusion"
	"tactix/internal/ladder"
	"tactix/internal/scoring"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration, loaded once at startup.
// Components receive their slices by value and never read files themselves.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Market    MarketConfig           `mapstructure:"market"`
	Engine    engine.Config          `mapstructure:"engine"`
	Fusion    fusion.Config          `mapstructure:"fusion"`
	Scoring   scoring.Config         `mapstructure:"scoring"`
	Ladder    LadderConfig           `mapstructure:"ladder"`
	Alerts    AlertsConfig           `mapstructure:"alerts"`
	Store     StoreConfig            `mapstructure:"store"`
	Schedule  ScheduleConfig         `mapstructure:"schedule"`
	Notify    NotifyConfig           `mapstructure:"notify"`
	HTTP      HTTPConfig             `mapstructure:"http"`
	Positions []engine.PositionEntry `mapstructure:"positions"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type MarketConfig struct {
	RESTBaseURL    string `mapstructure:"rest_base_url"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec"`
}

type LadderConfig struct {
	Machine ladder.Config `mapstructure:"machine"`
	// SessionOffsetHours shifts the daily reset boundary from 00:00 UTC.
	SessionOffsetHours int `mapstructure:"session_offset_hours"`
}

type AlertsConfig struct {
	RulesPath    string `mapstructure:"rules_path"`
	EventLogPath string `mapstructure:"event_log_path"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ScheduleConfig struct {
	OffsetSeconds  int  `mapstructure:"offset_seconds"`
	RunImmediately bool `mapstructure:"run_immediately"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads and validates the YAML configuration file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/tactix.db"
	}
	if c.Alerts.EventLogPath == "" {
		c.Alerts.EventLogPath = "data/alert_events.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9980"
	}
	if c.Schedule.OffsetSeconds < 0 {
		c.Schedule.OffsetSeconds = 0
	}
}

func (c *Config) validate() error {
	if len(c.Engine.Symbols) == 0 {
		return fmt.Errorf("config: engine.symbols must not be empty")
	}
	if len(c.Fusion.Signals) == 0 {
		return fmt.Errorf("config: fusion.signals must not be empty")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("config: telegram enabled but bot_token/chat_id missing")
		}
	}
	if c.Ladder.SessionOffsetHours < -12 || c.Ladder.SessionOffsetHours > 14 {
		return fmt.Errorf("config: ladder.session_offset_hours out of range")
	}
	return nil
}

// HTTPTimeout converts the configured seconds to a duration.
func (m MarketConfig) HTTPTimeout() time.Duration {
	return time.Duration(m.HTTPTimeoutSec) * time.Second
}
