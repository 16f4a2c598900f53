// Package cache wraps Redis for the short-lived lookups the engine
// repeats many times per cycle, credential material foremost. Values are
// stored as JSON with a TTL; the cache is a lookaside, never the source
// of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campaign-autopilot/cap/internal/models"
)

const connectTimeout = 5 * time.Second

// Client is a JSON-over-Redis cache
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis. addr may be a redis:// URL or a bare
// host:port.
func NewClient(addr string) (*Client, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Set stores a JSON-encoded value under key for ttl
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Get decodes the value at key into dest. A missing or expired key
// returns models.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Health pings Redis
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
