package utils

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCacheTTL = 10 * time.Minute
	cacheOpTimeout  = 2 * time.Second
)

// CacheGetJSON loads key into out. It reports false on a miss, a decode
// failure or when Redis is disabled.
func CacheGetJSON(ctx context.Context, key string, out interface{}) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		Logger.Warn("cache entry undecodable, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// CacheSetJSON stores v under key for ttl.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		Logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheVersion reads the generation counter stored at key, 0 when unset or
// when Redis is disabled.
func CacheVersion(ctx context.Context, key string) int64 {
	rc := GetRedis()
	if rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	n, err := rc.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return n
}

// CacheBumpVersion advances the generation counter at key so entries keyed
// by an older generation are never read again. The counter outlives ttl.
func CacheBumpVersion(ctx context.Context, key string, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	pipe := rc.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		Logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
	}
}
