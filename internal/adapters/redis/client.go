package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dpterminal/internal/adapters/config"
	"dpterminal/pkg/errors"
)

// Client wraps Redis client
type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the connection with PING
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(errors.ErrUnavailable, "redis ping %s: %v", cfg.Addr(), err)
	}

	return &Client{rdb: rdb}, nil
}

// Client returns the underlying Redis client
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
