package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const userCacheKeyPrefix = "authgate:user:"

// RedisKV is the subset of go-redis used by the user cache.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedUserRepository fronts a UserRepository with a read-through Redis cache
// for FindByUsername. Records are never updated or deleted, so a cached
// snapshot is always current; only hits are cached.
type CachedUserRepository struct {
	inner  UserRepository
	redis  RedisKV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedUserRepository(inner UserRepository, client RedisKV, ttl time.Duration, logger *zap.Logger) *CachedUserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedUserRepository{inner: inner, redis: client, ttl: ttl, logger: logger}
}

func (r *CachedUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	key := userCacheKeyPrefix + username
	raw, err := r.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec UserRecord
		if jerr := json.Unmarshal(raw, &rec); jerr == nil {
			return &rec, nil
		}
		r.logger.Warn("discarding corrupt user cache entry", zap.String("username", username))
	case !errors.Is(err, redis.Nil):
		// Redis trouble degrades to a direct lookup.
		r.logger.Warn("user cache read failed", zap.String("username", username), zap.Error(err))
	}

	rec, err := r.inner.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(rec); jerr == nil {
		if serr := r.redis.Set(ctx, key, payload, r.ttl).Err(); serr != nil {
			r.logger.Warn("user cache write failed", zap.String("username", username), zap.Error(serr))
		}
	}
	return rec, nil
}

func (r *CachedUserRepository) Create(ctx context.Context, rec *UserRecord) error {
	return r.inner.Create(ctx, rec)
}

func (r *CachedUserRepository) List(ctx context.Context) ([]UserRecord, error) {
	return r.inner.List(ctx)
}
