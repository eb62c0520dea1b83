// Package redis opens the cache connection that holds idempotency keys.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"pricing-service/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout    = 5 * time.Second
	ioTimeout      = 3 * time.Second
	connectTimeout = 5 * time.Second
)

// Client is the service's cache connection.
type Client struct {
	client *redis.Client
	addr   string
}

// NewRedisClient connects using cfg and fails unless the server answers a PING.
func NewRedisClient(cfg config.RedisConfig) (*Client, error) {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("Connected to redis", "addr", addr, "db", cfg.DB)
	return &Client{client: client, addr: addr}, nil
}

func (c *Client) GetClient() *redis.Client {
	return c.client
}

// PingContext reports whether the cache still answers.
func (c *Client) PingContext(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis at %s: %w", c.addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
