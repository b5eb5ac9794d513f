package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values in Redis under a common key prefix.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// NewFromURL parses a redis:// URL, connects, and verifies the server answers.
func NewFromURL(ctx context.Context, url, prefix string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, prefix, ttl), nil
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get decodes the cached value for k into dest. A miss is (false, nil).
func (c *Cache) Get(ctx context.Context, k string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s from cache: %w", k, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal cached %s: %w", k, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, k string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s for cache: %w", k, err)
	}

	if err := c.client.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s in cache: %w", k, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete from cache: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
