package config

// Redis backs the distributed rate limiter and the short-TTL response
// cache.  Both are optional: when the connection cannot be established
// at startup this constructor returns nil and the middleware disables
// itself, leaving bidding fully functional.

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from the environment.  REDIS_URL
// (redis:// or rediss:// form) takes precedence; otherwise REDIS_ADDR
// or the REDIS_HOST/REDIS_PORT pair is used together with
// REDIS_PASSWORD and REDIS_DB.  Returns nil when no server answers the
// startup ping.
func NewRedisClient() *redis.Client {
	var opts *redis.Options
	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			log.Printf("redis: invalid REDIS_URL: %v", err)
			return nil
		}
		opts = parsed
	} else {
		addr := os.Getenv("REDIS_ADDR")
		if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
			addr = host + ":" + port
		}
		if addr == "" {
			addr = "localhost:6379"
		}
		opts = &redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoi(getenv("REDIS_DB", "0")),
		}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed: %v; rate limiting and caching disabled", opts.Addr, err)
		return nil
	}
	return client
}
