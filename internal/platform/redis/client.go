// Package redis owns the connection to the pub/sub bus. The hub takes the
// raw go-redis client; this wrapper exists for lifecycle and the readiness
// probe so nothing else in the tree needs to know how the bus is dialed.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bouncehub/internal/platform/config"
)

// Client is the process-wide bus connection.
type Client struct {
	*redis.Client
}

// New dials the bus from configuration. An empty URL is not an error: the
// service then runs busless and fan-out stays local to this instance, which
// is the expected single-instance development mode.
func New(cfg config.Redis) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	// Pool sizing matters less here than for a cache: the bus holds one
	// long-lived subscriber plus short publish calls.
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the bus is reachable. Feeds the readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
