package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type YouTubeConfig struct {
	YTDLPPath     string        `env:"YTDLP_PATH, default=yt-dlp"`
	FFmpegPath    string        `env:"FFMPEG_PATH, default=ffmpeg"`
	LookupTimeout time.Duration `env:"YOUTUBE_LOOKUP_TIMEOUT, default=30s"`
	SearchRate    float64       `env:"YOUTUBE_SEARCH_RATE, default=5"`
	SearchBurst   int           `env:"YOUTUBE_SEARCH_BURST, default=10"`
}

func NewYouTubeConfigFromEnv() (*YouTubeConfig, error) {
	return NewYouTubeConfig(context.Background(), nil)
}

func NewYouTubeConfig(ctx context.Context, lookuper envconfig.Lookuper) (*YouTubeConfig, error) {
	var cfg YouTubeConfig
	if err := process(ctx, &cfg, lookuper); err != nil {
		return nil, err
	}
	if cfg.SearchRate <= 0 || cfg.SearchBurst <= 0 {
		return nil, fmt.Errorf("YOUTUBE_SEARCH_RATE and YOUTUBE_SEARCH_BURST must be positive")
	}

	return &cfg, nil
}
