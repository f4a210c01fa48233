package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("RRTTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{RRTTTLHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.RRTTTL())
	})

	t.Run("HOTTTL converts minutes to duration", func(t *testing.T) {
		cfg := &Config{HOTTTLMinutes: 10}
		assert.Equal(t, 10*time.Minute, cfg.HOTTTL())
	})

	t.Run("reconcile windows convert to durations", func(t *testing.T) {
		cfg := &Config{StaleWindowMinutes: 5, ScheduledGraceMinutes: 30, ReconcileIntervalSeconds: 60}
		assert.Equal(t, 5*time.Minute, cfg.StaleWindow())
		assert.Equal(t, 30*time.Minute, cfg.ScheduledGrace())
		assert.Equal(t, time.Minute, cfg.ReconcileInterval())
	})
}

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/visit_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 24, cfg.RRTTTLHours)
		assert.Equal(t, 10, cfg.HOTTTLMinutes)
		assert.Equal(t, 5, cfg.StaleWindowMinutes)
		assert.Equal(t, 30, cfg.ScheduledGraceMinutes)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("reads overrides from env", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("RRT_TTL_HOURS", "48")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Port)
		assert.Equal(t, 48, cfg.RRTTTLHours)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			BaseURL:               "https://visit.example.com",
			RedisURL:              "rediss://example:6379",
			RRTTTLHours:           24,
			HOTTTLMinutes:         10,
			StaleWindowMinutes:    5,
			ScheduledGraceMinutes: 30,
		}
	}

	t.Run("accepts sane values", func(t *testing.T) {
		assert.NoError(t, valid().Validate(true))
	})

	t.Run("rejects zero RRT TTL", func(t *testing.T) {
		cfg := valid()
		cfg.RRTTTLHours = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects grace shorter than stale window", func(t *testing.T) {
		cfg := valid()
		cfg.ScheduledGraceMinutes = 2
		assert.Error(t, cfg.Validate(false))
	})
}
