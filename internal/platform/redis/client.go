// Package redis connects to the Redis instance that carries the ledger event
// stream.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"invitegate/internal/platform/config"
)

// Client is a go-redis client bound to the configured event stream.
type Client struct {
	*redis.Client
	stream string
	maxLen int64
}

// New connects and pings. It returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if cfg.Stream == "" {
		return nil, errors.New("redis stream name is required")
	}
	if cfg.StreamMaxLen < 0 {
		return nil, fmt.Errorf("redis stream max length must not be negative, got %d", cfg.StreamMaxLen)
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts), stream: cfg.Stream, maxLen: int64(cfg.StreamMaxLen)}
	if err := c.Health(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	return c, nil
}

// Stream is the key events are appended to.
func (c *Client) Stream() string { return c.stream }

// StreamMaxLen is the approximate trim length; zero disables trimming.
func (c *Client) StreamMaxLen() int64 { return c.maxLen }

// Health pings the server and checks that the stream key is unused or holds a stream.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	kind, err := c.Type(ctx, c.stream).Result()
	if err != nil {
		return fmt.Errorf("inspect stream %s: %w", c.stream, err)
	}
	if kind != "none" && kind != "stream" {
		return fmt.Errorf("redis key %s holds a %s, not a stream", c.stream, kind)
	}
	return nil
}

// Backlog reports how many entries the stream currently holds.
func (c *Client) Backlog(ctx context.Context) (int64, error) {
	n, err := c.XLen(ctx, c.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen %s: %w", c.stream, err)
	}
	return n, nil
}
