// Package cache provides the Redis client shared by assessment sessions and
// the generation budget.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace prefixes every key this service writes, so one Redis can be
// shared with other applications.
const Namespace = "skillforge"

// Cache wraps a Redis client.
type Cache struct {
	Client *redis.Client
}

// Option adjusts client options before connecting.
type Option func(*redis.Options)

// WithPoolSize sets the maximum number of socket connections.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithTimeouts sets the dial and read/write timeouts.
func WithTimeouts(dial, readWrite time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = readWrite
		o.WriteTimeout = readWrite
	}
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New connects to Redis and pings it once.
func New(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	ro, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	ro.DialTimeout = 5 * time.Second
	ro.ReadTimeout = 3 * time.Second
	ro.WriteTimeout = 3 * time.Second
	for _, opt := range opts {
		opt(ro)
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Key builds a namespaced key prefix such as "skillforge:session:".
func Key(kind string) string {
	return Namespace + ":" + strings.Trim(kind, ":") + ":"
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
