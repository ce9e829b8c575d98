// Package cache keeps short-lived lookups out of the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const classListKey = "directory:classes"

// ClassCache stores the distinct class labels of active students
type ClassCache interface {
	Get(ctx context.Context) ([]string, bool)
	Set(ctx context.Context, classes []string)
	Invalidate(ctx context.Context)
}

// RedisClassCache is a ClassCache backed by redis. Redis failures are logged
// and treated as misses so the caller falls through to the database.
type RedisClassCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisClassCache creates a redis-backed class cache
func NewRedisClassCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisClassCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisClassCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "class_cache").Logger(),
	}
}

// Get returns the cached labels
func (c *RedisClassCache) Get(ctx context.Context) ([]string, bool) {
	value, err := c.client.Get(ctx, classListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Class cache read failed")
		return nil, false
	}

	var classes []string
	if err := json.Unmarshal(value, &classes); err != nil {
		c.logger.Warn().Err(err).Msg("Class cache entry is corrupt")
		return nil, false
	}
	return classes, true
}

// Set stores the labels for the configured TTL
func (c *RedisClassCache) Set(ctx context.Context, classes []string) {
	data, err := json.Marshal(classes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, classListKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Class cache write failed")
	}
}

// Invalidate drops the cached labels
func (c *RedisClassCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, classListKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Class cache invalidation failed")
	}
}

// NoopClassCache never caches; used when redis is not configured
type NoopClassCache struct{}

func (NoopClassCache) Get(context.Context) ([]string, bool) { return nil, false }
func (NoopClassCache) Set(context.Context, []string)        {}
func (NoopClassCache) Invalidate(context.Context)           {}

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
