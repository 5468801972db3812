package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 30, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, "ip_user_route", cfg.KeyStrategy)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10m")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	// The bucket must survive at least a few refill cycles.
	assert.Equal(t, 50*time.Minute, cfg.TTL)
}
