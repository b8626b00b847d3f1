// Package redis holds the Redis-backed price cache and bot session store.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"solana-buybot/internal/logger"
)

// Config configures the Redis connection.
type Config struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // default "buybot:"
}

// Client wraps a go-redis client with the key namespace used by this service.
type Client struct {
	rdb    *goredis.Client
	prefix string
}

// Redis returns the underlying client for health checks.
func (c *Client) Redis() *goredis.Client { return c.rdb }

// New connects and pings the server.
func New(cfg Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "buybot:"
	}

	logger.Component("redis").Info("connected", "addr", cfg.Addr)
	return &Client{rdb: rdb, prefix: prefix}, nil
}

func (c *Client) key(parts ...string) string {
	k := c.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
