package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when no forecast is stored for a goal
var ErrCacheMiss = errors.New("cache miss")

// NewRedisClient connects to Redis, or returns nil when REDIS_ADDR is empty
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// TimelineCache keeps the latest forecast of each goal so follow-up requests
// describe the numbers the user has already seen.
type TimelineCache struct {
	rdb    *redis.Client
	log    *logrus.Logger
	prefix string
	ttl    time.Duration
}

// Option customises a TimelineCache
type Option func(*TimelineCache)

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(c *TimelineCache) { c.prefix = prefix }
}

// WithTTL sets how long a forecast is kept
func WithTTL(ttl time.Duration) Option {
	return func(c *TimelineCache) { c.ttl = ttl }
}

// NewTimelineCache creates a cache. A nil client yields a cache that stores nothing.
func NewTimelineCache(rdb *redis.Client, log *logrus.Logger, opts ...Option) *TimelineCache {
	c := &TimelineCache{
		rdb:    rdb,
		log:    log,
		prefix: "goal-service:timeline:",
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a Redis client is attached
func (c *TimelineCache) Enabled() bool {
	return c.rdb != nil
}

func (c *TimelineCache) key(goalID string) string {
	return c.prefix + goalID
}

// Get returns the cached forecast for a goal or ErrCacheMiss
func (c *TimelineCache) Get(ctx context.Context, goalID string) (*forecast.Result, error) {
	if !c.Enabled() {
		return nil, ErrCacheMiss
	}
	raw, err := c.rdb.Get(ctx, c.key(goalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached timeline: %w", err)
	}
	var result forecast.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		c.log.Warnf("Dropping unreadable cached timeline for goal %s: %v", goalID, err)
		c.rdb.Del(ctx, c.key(goalID))
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// Set stores the forecast for a goal
func (c *TimelineCache) Set(ctx context.Context, goalID string, result *forecast.Result) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(goalID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache timeline: %w", err)
	}
	return nil
}

// Delete forgets the forecast for a goal, used when the goal changes
func (c *TimelineCache) Delete(ctx context.Context, goalID string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(goalID)).Err(); err != nil {
		return fmt.Errorf("failed to evict timeline: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *TimelineCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
