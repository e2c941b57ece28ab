package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnrirwin/feedformatter/internal/logging"
)

// RedisCache stores JSON-encoded payloads in Redis. Keys expire server-side
// at the same aligned boundary the memory cache uses.
type RedisCache[P any] struct {
	client  *redis.Client
	maxAge  time.Duration
	prefix  string
	timeout time.Duration
	now     Clock
	logger  *logging.Logger
}

// RedisConfig holds configuration for the Redis cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

const defaultRedisPrefix = "feedformatter:"

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis[P any](cfg RedisConfig, maxAge time.Duration) (*RedisCache[P], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return newRedisWithClient[P](client, cfg.Prefix, maxAge), nil
}

func newRedisWithClient[P any](client *redis.Client, prefix string, maxAge time.Duration) *RedisCache[P] {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache[P]{
		client:  client,
		maxAge:  maxAge,
		prefix:  prefix,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// WithLogger reports Redis failures that the Cache interface cannot return.
func (c *RedisCache[P]) WithLogger(logger *logging.Logger) *RedisCache[P] {
	c.logger = logger
	return c
}

func (c *RedisCache[P]) warn(msg, key string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, logging.WithField("key", c.key(key)), logging.WithError(err))
}

func (c *RedisCache[P]) key(k string) string {
	return c.prefix + k
}

// Get treats any Redis or decoding failure as a miss. Failures other than
// a missing key are logged when a logger is set.
func (c *RedisCache[P]) Get(key string) (P, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var zero P
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("Redis cache read failed", key, err)
		}
		return zero, false
	}

	var payload P
	if err := json.Unmarshal(data, &payload); err != nil {
		c.warn("Redis cache entry undecodable", key, err)
		return zero, false
	}
	return payload, true
}

func (c *RedisCache[P]) Set(key string, payload P) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		c.warn("Redis cache entry unencodable", key, err)
		return
	}

	err = c.client.SetArgs(ctx, c.key(key), data, redis.SetArgs{
		ExpireAt: AlignedExpiry(c.now(), c.maxAge),
	}).Err()
	if err != nil {
		c.warn("Redis cache write failed", key, err)
	}
}

// Close closes the Redis connection
func (c *RedisCache[P]) Close() error {
	return c.client.Close()
}

// Ensure RedisCache implements Cache interface
var _ Cache[[]byte] = (*RedisCache[[]byte])(nil)
