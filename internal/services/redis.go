package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "subsplit:lock:"

// ReleaseFunc releases a lock previously acquired through a Locker.
type ReleaseFunc func(ctx context.Context) error

// Locker grants short-lived exclusive ownership of a key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// RedisCache wraps the redis client used for coordination between processes
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis client from a redis:// URL and checks connectivity
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisCacheFromClient(ctx, redis.NewClient(opt))
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(ctx context.Context, client *redis.Client) (*RedisCache, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// TryLock sets key with a random owner token if it is not held yet.
// The returned release only deletes the key while the token still matches.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	owner := uuid.NewString()
	fullKey := lockPrefix + key

	ok, err := c.client.SetNX(ctx, fullKey, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		current, err := c.client.Get(ctx, fullKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("read lock owner: %w", err)
		}
		if current != owner {
			return nil
		}
		return c.client.Del(ctx, fullKey).Err()
	}
	return release, true, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopLocker always grants the lock; used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string, time.Duration) (ReleaseFunc, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
