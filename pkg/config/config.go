// Package config loads gateway settings from a YAML file with an
// environment-variable overlay (.env supported via godotenv).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds connection and behavior settings for the trading gateway.
type Config struct {
	// Fronts
	MdFrontAddr     string `yaml:"md_front_addr" validate:"required"`
	TraderFrontAddr string `yaml:"trader_front_addr" validate:"required"`

	// Identity
	BrokerID   string `yaml:"broker_id" validate:"required"`
	InvestorID string `yaml:"investor_id"`
	Password   string `yaml:"password"`
	AppID      string `yaml:"app_id"`
	AuthCode   string `yaml:"auth_code"`

	// Local flow/storage directory for the vendor API.
	FlowPath string `yaml:"flow_path"`

	// Timeouts and reconnection
	TimeoutSecs          int `yaml:"timeout_secs" validate:"gte=1,lte=300"`
	ReconnectIntervalSec int `yaml:"reconnect_interval_secs" validate:"gte=1,lte=600"`
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" validate:"gte=0,lte=100"`

	// Risk thresholds
	RiskWarningLevel    float64 `yaml:"risk_warning_level" validate:"gt=0,lte=1"`
	RiskForceCloseLevel float64 `yaml:"risk_force_close_level" validate:"gt=0,lte=1"`

	// Pre-trade limits
	MaxOrderVolume     int     `yaml:"max_order_volume" validate:"gte=0"`
	MaxPositionVolume  int     `yaml:"max_position_volume" validate:"gte=0"`
	MaxDailyLoss       float64 `yaml:"max_daily_loss" validate:"gte=0"`
	MaxOrdersPerMinute int     `yaml:"max_orders_per_minute" validate:"gte=0"`

	// Instruments the account is barred from trading.
	ForbiddenInstruments []string `yaml:"forbidden_instruments"`

	// Instruments subscribed at startup.
	Instruments []string `yaml:"instruments"`

	// Contract multipliers per instrument; DefaultMultiplier applies to the rest.
	Multipliers       map[string]float64 `yaml:"multipliers"`
	DefaultMultiplier float64            `yaml:"default_multiplier" validate:"gt=0"`

	// Journal database ("" disables persistence).
	DBPath string `yaml:"db_path"`

	// UI push bridge ("" disables).
	PushAddr string `yaml:"push_addr"`

	// Localization / logging
	Language string `yaml:"language" validate:"oneof=en zh"`
	LogLevel string `yaml:"log_level"`
}

// Default returns a config with sane non-connection defaults. Front and
// broker fields must still be filled in by the caller or the file.
func Default() *Config {
	return &Config{
		FlowPath:             "./flow",
		TimeoutSecs:          30,
		ReconnectIntervalSec: 5,
		MaxReconnectAttempts: 3,
		RiskWarningLevel:     0.8,
		RiskForceCloseLevel:  0.9,
		MaxOrderVolume:       100,
		MaxPositionVolume:    500,
		MaxOrdersPerMinute:   60,
		DefaultMultiplier:    10,
		Language:             "en",
		LogLevel:             "info",
	}
}

// Load reads path (optional), overlays environment variables and validates.
// Validation failures carry the offending field names.
func Load(path string) (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.MdFrontAddr, "MD_FRONT_ADDR")
	setStr(&c.TraderFrontAddr, "TRADER_FRONT_ADDR")
	setStr(&c.BrokerID, "BROKER_ID")
	setStr(&c.InvestorID, "INVESTOR_ID")
	setStr(&c.Password, "PASSWORD")
	setStr(&c.AppID, "APP_ID")
	setStr(&c.AuthCode, "AUTH_CODE")
	setStr(&c.FlowPath, "FLOW_PATH")
	setStr(&c.DBPath, "DB_PATH")
	setStr(&c.PushAddr, "PUSH_ADDR")
	setStr(&c.Language, "LANGUAGE")
	setStr(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSecs = n
		}
	}
	if v := os.Getenv("RECONNECT_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReconnectIntervalSec = n
		}
	}
	if v := os.Getenv("MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxReconnectAttempts = n
		}
	}
}

var validate = validator.New()

// Validate checks required fields and bounds.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("invalid config field %s (%s)", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	if c.RiskForceCloseLevel <= c.RiskWarningLevel {
		return fmt.Errorf("invalid config: force close level %.2f must exceed warning level %.2f",
			c.RiskForceCloseLevel, c.RiskWarningLevel)
	}
	return nil
}

// Timeout is the response wait window for connect/login/sync queries.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ReconnectInterval is the base backoff delay between reconnect attempts.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSec) * time.Second
}

// Multiplier returns the contract multiplier for an instrument.
func (c *Config) Multiplier(instrumentID string) float64 {
	if m, ok := c.Multipliers[instrumentID]; ok && m > 0 {
		return m
	}
	return c.DefaultMultiplier
}
