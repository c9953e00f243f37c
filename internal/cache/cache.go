// Package cache stores JSON encoded lookup results in redis. A nil client turns
// every operation into a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "survey-bknd:"

type Cache interface {
	// Get decodes the value at key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Connect builds a client for addr. An empty addr disables caching.
func Connect(ctx context.Context, addr, password string, ttl time.Duration, log *zap.Logger) (Cache, error) {
	if strings.TrimSpace(addr) == "" {
		log.Info("redis address not set, caching disabled")
		return Noop{}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	log.Info("connected to redis", zap.String("addr", addr))
	return NewRedis(rdb, ttl), nil
}

func (c *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Redis) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+key, b, c.ttl).Err()
}

func (c *Redis) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, any) error { return nil }

// Fetch returns the cached value for key or loads and stores it. Cache failures
// are logged and never fail the call.
func Fetch[T any](ctx context.Context, c Cache, log *zap.Logger, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c == nil {
		return load(ctx)
	}
	found, err := c.Get(ctx, key, &v)
	if err != nil {
		log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return v, nil
	}

	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
