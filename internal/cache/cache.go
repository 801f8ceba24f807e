// Package cache provides the Redis read-through cache in front of the
// score store. Cache failures are logged and absorbed: the service must
// keep answering from Postgres when Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/aimaneth/blitzproof/internal/persistence"
	"github.com/aimaneth/blitzproof/internal/score"
	"github.com/aimaneth/blitzproof/internal/telemetry/metrics"
)

// DefaultTTL bounds how stale a cached score may get.
const DefaultTTL = 300 * time.Second

// keyPrefix namespaces all keys written by this service.
const keyPrefix = "blitzproof"

// Config holds Redis connection settings.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultConfig returns settings for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		TTL:  DefaultTTL,
	}
}

// Cache wraps a Redis client with the service's key scheme and TTL policy.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, config Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", config.Addr, err)
	}

	return NewWithClient(client, config.TTL), nil
}

// NewWithClient wraps an existing client. Used by tests with a mock.
func NewWithClient(client redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ScoreKey builds the cache key for a token's score.
func ScoreKey(tokenID string) string {
	return fmt.Sprintf("%s:score:%s", keyPrefix, tokenID)
}

// InfoKey builds the cache key for a token's metadata.
func InfoKey(tokenID string) string {
	return fmt.Sprintf("%s:info:%s", keyPrefix, tokenID)
}

// GetScore returns the cached score. The second return reports whether the
// key was present; cache errors count as a miss.
func (c *Cache) GetScore(ctx context.Context, tokenID string) (score.BlitzProofScore, bool) {
	var s score.BlitzProofScore
	if !c.get(ctx, ScoreKey(tokenID), "score", &s) {
		return score.BlitzProofScore{}, false
	}
	return s, true
}

// SetScore caches the score under the configured TTL. Failures are logged
// and dropped.
func (c *Cache) SetScore(ctx context.Context, s score.BlitzProofScore) {
	c.set(ctx, ScoreKey(s.TokenID), s)
}

// DeleteScore invalidates the cached score.
func (c *Cache) DeleteScore(ctx context.Context, tokenID string) {
	c.delete(ctx, ScoreKey(tokenID))
}

// GetInfo returns the cached token metadata.
func (c *Cache) GetInfo(ctx context.Context, tokenID string) (persistence.TokenInfo, bool) {
	var info persistence.TokenInfo
	if !c.get(ctx, InfoKey(tokenID), "info", &info) {
		return persistence.TokenInfo{}, false
	}
	return info, true
}

// SetInfo caches the token metadata.
func (c *Cache) SetInfo(ctx context.Context, info persistence.TokenInfo) {
	c.set(ctx, InfoKey(info.TokenID), info)
}

// DeleteInfo invalidates the cached token metadata.
func (c *Cache) DeleteInfo(ctx context.Context, tokenID string) {
	c.delete(ctx, InfoKey(tokenID))
}

func (c *Cache) get(ctx context.Context, key, kind string, out interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		metrics.Default().RecordCacheMiss(kind)
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache entry corrupt, treating as miss")
		metrics.Default().RecordCacheMiss(kind)
		return false
	}

	metrics.Default().RecordCacheHit(kind)
	return true
}

func (c *Cache) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache marshal failed")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *Cache) delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}
