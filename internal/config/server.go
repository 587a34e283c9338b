package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type ServerConfig struct {
	Port       string `env:"PORT, default=3000"`
	PublicURL  string `env:"PUBLIC_URL"`
	StaticDir  string `env:"STATIC_DIR, default=public"`
	CORSOrigin string `env:"CORS_ORIGIN, default=*"`
}

func NewServerConfigFromEnv() (*ServerConfig, error) {
	return NewServerConfig(context.Background(), nil)
}

func NewServerConfig(ctx context.Context, lookuper envconfig.Lookuper) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if _, err := url.ParseRequestURI(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("invalid PUBLIC_URL %q: %w", cfg.PublicURL, err)
	}

	return &cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}
