// Package cache stores chat sessions in Redis with a sliding TTL.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config represents cache connection configuration.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// ExpireTime is the human duration string for session TTL,
	// e.g. "1h", "2d", "1w". Empty means the 1h default.
	ExpireTime string
}

// Cache wraps the shared Redis client and the per-object stores.
type Cache struct {
	client *redis.Client

	Chats *Chats
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache unreachable: %w", err)
	}

	ttl, err := ParseExpireTime(cfg.ExpireTime)
	if err != nil {
		return nil, err
	}

	return &Cache{
		client: client,
		Chats:  &Chats{client: client, ttl: ttl},
	}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
