// Package config loads process configuration from the environment.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LoadEnv loads variables from a .env file in the working directory.
// Variables already set in the environment win.
func LoadEnv() error {
	return godotenv.Load()
}

// process fills target from lookuper, or from the process environment when
// lookuper is nil.
func process(ctx context.Context, target any, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   target,
		Lookuper: lookuper,
	})
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL, default=info"`
}

func NewLogConfigFromEnv() (*LogConfig, error) {
	return NewLogConfig(context.Background(), nil)
}

func NewLogConfig(ctx context.Context, lookuper envconfig.Lookuper) (*LogConfig, error) {
	var cfg LogConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SlogLevel parses Level as one of debug, info, warn or error.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Level))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Level, err)
	}
	return level, nil
}
