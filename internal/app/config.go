package app

import (
	"errors"
	"fmt"
)

// Config holds the service settings. Fields are filled from flags and
// SIGNALD_* environment variables.
type Config struct {
	Addr       string  `mapstructure:"addr"`
	LogLevel   string  `mapstructure:"log-level"`
	LogPretty  bool    `mapstructure:"log-pretty"`
	FireRate   float64 `mapstructure:"fire-rate"`
	FireBurst  int64   `mapstructure:"fire-burst"`
	OutboxSize int     `mapstructure:"outbox-size"`
	MaxSignals int     `mapstructure:"max-signals"`
	FailFast   bool    `mapstructure:"fail-fast"`
}

func DefaultConfig() Config {
	return Config{
		Addr:       ":8080",
		LogLevel:   "info",
		FireRate:   100,
		FireBurst:  200,
		OutboxSize: 64,
		MaxSignals: 1024,
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.FireRate < 0 {
		return fmt.Errorf("fire-rate must not be negative, got %v", c.FireRate)
	}
	if c.FireBurst < 0 {
		return fmt.Errorf("fire-burst must not be negative, got %d", c.FireBurst)
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("outbox-size must be positive, got %d", c.OutboxSize)
	}
	if c.MaxSignals < 1 {
		return fmt.Errorf("max-signals must be positive, got %d", c.MaxSignals)
	}
	return nil
}
