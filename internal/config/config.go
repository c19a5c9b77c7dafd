package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr         string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath           string     `env:"DB_PATH" envDefault:"data/touristquiz.db"`
	RedisURL         string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel         slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	MediaDir         string     `env:"MEDIA_DIR" envDefault:"data/media"`
	BaseURL          string     `env:"BASE_URL" envDefault:"http://localhost:8080"`
	LeaderboardLimit int        `env:"LEADERBOARD_LIMIT" envDefault:"50"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
