package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// BaseURL is the public origin invite and handoff URLs are built
	// against, e.g. https://visit.example.com
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	RRTTTLHours              int `env:"RRT_TTL_HOURS" envDefault:"24"`
	HOTTTLMinutes            int `env:"HOT_TTL_MINUTES" envDefault:"10"`
	StaleWindowMinutes       int `env:"STALE_WINDOW_MINUTES" envDefault:"5"`
	ScheduledGraceMinutes    int `env:"SCHEDULED_GRACE_MINUTES" envDefault:"30"`
	ReconcileIntervalSeconds int `env:"RECONCILE_INTERVAL_SECONDS" envDefault:"60"`

	CheckinRateLimitPerMin int    `env:"CHECKIN_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) RRTTTL() time.Duration {
	return time.Duration(c.RRTTTLHours) * time.Hour
}

func (c *Config) HOTTTL() time.Duration {
	return time.Duration(c.HOTTTLMinutes) * time.Minute
}

func (c *Config) StaleWindow() time.Duration {
	return time.Duration(c.StaleWindowMinutes) * time.Minute
}

func (c *Config) ScheduledGrace() time.Duration {
	return time.Duration(c.ScheduledGraceMinutes) * time.Minute
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.RRTTTLHours <= 0 {
		return fmt.Errorf("RRT_TTL_HOURS must be positive")
	}
	if c.HOTTTLMinutes <= 0 {
		return fmt.Errorf("HOT_TTL_MINUTES must be positive")
	}
	if c.StaleWindowMinutes <= 0 || c.ScheduledGraceMinutes <= 0 {
		return fmt.Errorf("staleness windows must be positive")
	}
	if c.ScheduledGraceMinutes < c.StaleWindowMinutes {
		return fmt.Errorf("SCHEDULED_GRACE_MINUTES must not be shorter than STALE_WINDOW_MINUTES")
	}

	if isProduction {
		if !strings.HasPrefix(c.BaseURL, "https://") {
			log.Warn().Str("baseUrl", c.BaseURL).Msg("BASE_URL is not https in production: invite links will be sent over plaintext")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
