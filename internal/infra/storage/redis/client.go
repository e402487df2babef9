// Package redis wraps a go-redis connection used as the backing store for
// the distributed rate limiter (internal/pkg/ratelimit) when REDIS_ADDR is
// configured, coordinating request spacing across multiple bot instances
// sharing the same provider endpoints.
package redis

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// Client holds a connected go-redis client.
type Client struct {
	conn *redis.Client
}

// Conn returns the underlying go-redis client, for callers (the rate
// limiter) that need to issue commands directly.
func (c *Client) Conn() *redis.Client {
	return c.conn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// NewClient connects to addr and pings it to fail fast on a bad address
// before the caller wires anything up against it.
func NewClient(ctx context.Context, addr, username, password string, db int) (*Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{
		conn: conn,
	}, nil
}
