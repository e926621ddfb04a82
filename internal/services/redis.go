package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "plotledger:"

// RedisCache is the shared Redis handle behind the referrer cache, locks and sequences.
// Every key it touches lives under redisKeyPrefix.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache connects to redisURL and pings it before returning
func NewRedisCache(redisURL string, log *logrus.Entry) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.WithField("addr", opt.Addr).Info("Redis connection established")
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) key(k string) string {
	return redisKeyPrefix + k
}

// SetJSON caches value as JSON for ttl
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// GetJSON decodes the cached value into dest, reporting false on a miss
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Cached returns the value cached under key, loading and caching it on a miss.
// Loader errors are returned as is and never cached, a broken cache falls through to the loader.
func Cached[T any](ctx context.Context, c *RedisCache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var result T
	if hit, err := c.GetJSON(ctx, key, &result); err == nil && hit {
		return result, nil
	}

	result, err := load()
	if err != nil {
		return result, err
	}
	_ = c.SetJSON(ctx, key, result, ttl)
	return result, nil
}

// AcquireToken stores token under key unless the key already exists
func (c *RedisCache) AcquireToken(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), token, ttl).Result()
}

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseToken deletes key if it still holds token, reporting whether it did
func (c *RedisCache) ReleaseToken(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, c.client, []string{c.key(key)}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Incr bumps a counter and returns its new value
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

// Ping checks the connection, used by the health endpoint
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
