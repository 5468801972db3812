package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig tunes the Redis token bucket guarding bid
// submission.  Capacity is the burst size; RefillTokens tokens are
// added every RefillInterval.  KeyStrategy selects what identifies a
// bucket (ip, user, user_route or the ip_user_route default).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
}

// LoadRateLimitConfig reads environment variables to build a
// RateLimitConfig, clamping nonsense values to safe minimums.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	// The bucket hash must outlive its refill cycle or limits reset early.
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}
