package geozone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache shared across pipeline instances. Entries carry no
// TTL: the zone for a given location string never changes, so the cache is
// append-only by design.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and returns a shared zone cache.
// keyPrefix namespaces entries; empty defaults to "payband:zone".
func NewRedisCache(addr, password string, db int, keyPrefix string) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if keyPrefix == "" {
		keyPrefix = "payband:zone"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, prefix: keyPrefix}, nil
}

func (c *RedisCache) key(location string) string {
	return c.prefix + ":" + location
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, location string) (int, bool, error) {
	zone, err := c.client.Get(ctx, c.key(location)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get zone from redis: %w", err)
	}
	return zone, true, nil
}

// Put implements Cache. Last write wins; the computed zone is deterministic
// for a given key so racing writers agree.
func (c *RedisCache) Put(ctx context.Context, location string, zone int) error {
	if err := c.client.Set(ctx, c.key(location), zone, 0).Err(); err != nil {
		return fmt.Errorf("store zone in redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
