package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type DiscordConfig struct {
	Token             string        `env:"DISCORD_TOKEN, required"`
	GuildID           string        `env:"DISCORD_GUILD_ID"`
	RunBotGlobally    bool          `env:"DISCORD_RUN_BOT_GLOBALLY"`
	VoiceReadyTimeout time.Duration `env:"DISCORD_VOICE_READY_TIMEOUT, default=30s"`
}

func NewDiscordConfigFromEnv() (*DiscordConfig, error) {
	return NewDiscordConfig(context.Background(), nil)
}

func NewDiscordConfig(ctx context.Context, lookuper envconfig.Lookuper) (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	if cfg.GuildID == "" && !cfg.RunBotGlobally {
		return nil, fmt.Errorf("refusing to run the bot without a guild ID unless DISCORD_RUN_BOT_GLOBALLY is set to true")
	}
	if cfg.VoiceReadyTimeout <= 0 {
		return nil, fmt.Errorf("DISCORD_VOICE_READY_TIMEOUT must be positive, got %s", cfg.VoiceReadyTimeout)
	}

	return &cfg, nil
}

// CommandGuildID is the guild slash commands are registered in.
// An empty ID registers them globally.
func (c *DiscordConfig) CommandGuildID() string {
	if c.RunBotGlobally {
		return ""
	}
	return c.GuildID
}
