package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8001"`
	DBPath   string `env:"DB_PATH" envDefault:"database/housing.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Allowed CORS origins, comma separated
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Telegram bot token for like notifications. Never used to verify init data.
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	Cache struct {
		// Lifetime of a cached search result (in seconds)
		TTLSeconds int `env:"CACHE_TTL_SECONDS" envDefault:"1800"`

		// Cron spec for the expired-entry sweep
		SweepSpec string `env:"CACHE_SWEEP_SPEC" envDefault:"@every 10m"`
	}

	Search struct {
		// Hard cap on listings returned by the store
		ResultLimit int `env:"SEARCH_RESULT_LIMIT" envDefault:"50"`

		// Radius used when a search request does not give one
		DefaultRadiusKm float64 `env:"DEFAULT_SEARCH_RADIUS_KM" envDefault:"2.0"`
	}

	Refresh struct {
		// Number of pending refresh tasks before new ones are dropped
		QueueSize int `env:"REFRESH_QUEUE_SIZE" envDefault:"64"`

		// Number of concurrent refresh workers
		Workers int `env:"REFRESH_WORKERS" envDefault:"2"`
	}
}

// CacheTTL returns the configured cache lifetime as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// LoadConfig reads an optional .env file and then parses the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
