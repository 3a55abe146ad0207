// Package redis implements the Redis read cache for progression summaries and
// the admin validation queue.
//
// Redis is optional: every call goes through a circuit breaker, and callers
// treat any cache error as a miss and fall back to the database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/esat-hub/skills-hub/pkg/circuitbreaker"
)

// Config mirrors the REDIS_* settings.
type Config struct {
	Addr     string // host:port
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeyPrefix namespaces every key, so several deployments can share a server.
	KeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		KeyPrefix:    "skillshub:",
	}
}

var (
	ErrCacheMiss          = errors.New("cache: key not found")
	ErrCacheConnection    = errors.New("cache: connection failed")
	ErrCacheSerialization = errors.New("cache: serialization failed")
	ErrCacheInvalidTTL    = errors.New("cache: invalid TTL")
	ErrCacheKeyEmpty      = errors.New("cache: key cannot be empty")
	ErrCacheNilValue      = errors.New("cache: value cannot be nil")

	// ErrCacheStale is returned by SetIfVersion when the version key moved.
	ErrCacheStale = errors.New("cache: version changed")
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a JSON key/value cache on Redis.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	breaker *circuitbreaker.CircuitBreaker
}

// NewCache connects to Redis and pings it.
func NewCache(ctx context.Context, cfg Config, breaker *circuitbreaker.CircuitBreaker) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return NewCacheFromClient(client, cfg.KeyPrefix, breaker), nil
}

// NewCacheFromClient wraps an existing client. breaker may be nil.
func NewCacheFromClient(client redis.UniversalClient, prefix string, breaker *circuitbreaker.CircuitBreaker) *Cache {
	return &Cache{client: client, prefix: prefix, breaker: breaker}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable. It bypasses the breaker so health checks
// always see the real state.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key returns the namespaced form of key.
func (c *Cache) Key(key string) string {
	return c.prefix + key
}

// ══════════════════════════════════════════════════════════════════════════════
// BASIC OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Get retrieves and deserializes a value by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	var (
		data []byte
		miss bool
	)
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, c.Key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if miss {
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VERSIONED WRITES
// A version key counts the invalidations of the entries it guards. Readers
// take the version before building a value and write it back with
// SetIfVersion; Invalidate bumps the version and deletes in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// Version returns the current value of versionKey, 0 if it was never set.
func (c *Cache) Version(ctx context.Context, versionKey string) (int64, error) {
	if versionKey == "" {
		return 0, ErrCacheKeyEmpty
	}

	var v int64
	err := c.run(ctx, func(ctx context.Context) error {
		var err error
		v, err = readVersion(ctx, c.client, c.Key(versionKey))
		return err
	})
	return v, err
}

// SetIfVersion stores value under key only while versionKey still holds
// version. It returns ErrCacheStale otherwise.
func (c *Cache) SetIfVersion(ctx context.Context, versionKey string, version int64, key string, value any, ttl time.Duration) error {
	if key == "" || versionKey == "" {
		return ErrCacheKeyEmpty
	}
	if value == nil {
		return ErrCacheNilValue
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	vk := c.Key(versionKey)
	stale := false
	err = c.run(ctx, func(ctx context.Context) error {
		err := c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readVersion(ctx, tx, vk)
			if err != nil {
				return err
			}
			if current != version {
				stale = true
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, c.Key(key), data, ttl)
				return nil
			})
			return err
		}, vk)
		// a concurrent bump aborted EXEC: same outcome as a version mismatch
		if errors.Is(err, redis.TxFailedErr) {
			stale = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if stale {
		return ErrCacheStale
	}
	return nil
}

// Invalidate increments versionKey and deletes keys atomically. The version
// key expires after versionTTL of inactivity.
func (c *Cache) Invalidate(ctx context.Context, versionKey string, versionTTL time.Duration, keys ...string) error {
	if versionKey == "" {
		return ErrCacheKeyEmpty
	}

	vk := c.Key(versionKey)
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}

	return c.run(ctx, func(ctx context.Context) error {
		_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Incr(ctx, vk)
			if versionTTL > 0 {
				pipe.Expire(ctx, vk, versionTTL)
			}
			if len(full) > 0 {
				pipe.Del(ctx, full...)
			}
			return nil
		})
		return err
	})
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, r getter, key string) (int64, error) {
	v, err := r.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// run executes fn through the breaker, if any.
func (c *Cache) run(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}
