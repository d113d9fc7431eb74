// Package cache provides the Redis-backed nickname cache and the
// cross-process lock that keeps one monitoring cycle per tournament type.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisCache is a thin wrapper over a Redis client
type RedisCache struct {
	client *redis.Client
}

// unlockScript deletes the lock only while it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the value stored at key; ok is false when the key is absent
func (c *RedisCache) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("get", time.Since(start).Seconds()) }()

	value, err = c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key for ttl
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("set", time.Since(start).Seconds()) }()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Lock tries to take key for ttl. The returned token is needed to unlock.
func (c *RedisCache) Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("lock", time.Since(start).Seconds()) }()

	token = uuid.NewString()
	ok, err = c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}

	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Lock acquired")
	return token, true, nil
}

// Unlock releases key if it is still held with token
func (c *RedisCache) Unlock(ctx context.Context, key, token string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("unlock", time.Since(start).Seconds()) }()

	n, err := unlockScript.Run(ctx, c.client, []string{key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to unlock %s: %w", key, err)
	}
	return n == 1, nil
}
