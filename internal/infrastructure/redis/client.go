package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/flowboard/backend/internal/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects to Redis and pings it so a bad address fails at
// boot instead of on the first session lookup.
func NewClient(cfg config.RedisConfig) (*redislib.Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	client := redislib.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// options parses the URL form and layers explicit credential overrides
// on top, so REDIS_PASSWORD wins over a password baked into the URL.
func options(cfg config.RedisConfig) (*redislib.Options, error) {
	opts, err := redislib.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}
