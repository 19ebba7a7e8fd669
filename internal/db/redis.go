// internal/db/redis.go
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by GetCache when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

type RedisDB struct {
	Client *redis.Client
	log    *zap.Logger
}

func NewRedisDB(ctx context.Context, redisURL string, log *zap.Logger) (*RedisDB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to redis", zap.String("addr", opt.Addr))
	return &RedisDB{Client: client, log: log}, nil
}

func (r *RedisDB) Close() {
	if r.Client != nil {
		if err := r.Client.Close(); err != nil {
			r.log.Warn("redis close failed", zap.Error(err))
			return
		}
		r.log.Info("redis connection closed")
	}
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Cache methods

func (r *RedisDB) SetCache(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, "cache:"+key, data, expiration).Err()
}

func (r *RedisDB) GetCache(ctx context.Context, key string, dest any) error {
	data, err := r.Client.Get(ctx, "cache:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisDB) DeleteCache(ctx context.Context, key string) error {
	return r.Client.Del(ctx, "cache:"+key).Err()
}

// CacheVersion returns the counter at versionKey, zero when it is unset.
func (r *RedisDB) CacheVersion(ctx context.Context, versionKey string) (int64, error) {
	v, err := r.Client.Get(ctx, "cache:"+versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetCacheIfVersion stores value only while versionKey still holds version.
// It reports whether the value was written.
func (r *RedisDB) SetCacheIfVersion(ctx context.Context, key, versionKey string, version int64, value any, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	vkey := "cache:" + versionKey
	stored := false
	err = r.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, "cache:"+key, data, expiration)
			return nil
		})
		stored = err == nil
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// BumpCacheVersion deletes key and advances versionKey atomically, so
// writers holding the old version can no longer store key.
func (r *RedisDB) BumpCacheVersion(ctx context.Context, key, versionKey string, keep time.Duration) error {
	vkey := "cache:" + versionKey
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, keep)
		pipe.Del(ctx, "cache:"+key)
		return nil
	})
	return err
}
