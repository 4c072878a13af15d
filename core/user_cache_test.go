package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCachedRepo(t *testing.T) (*CachedUserRepository, *memUserRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := newMemUserRepository()
	return NewCachedUserRepository(inner, client, time.Minute, zap.NewNop()), inner, mr
}

func TestCachedUserRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, &UserRecord{Username: "alice", PasswordHash: "h", Role: "user"}))

	first, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	second, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.findCount())
	assert.Equal(t, first.Username, second.Username)
	assert.Equal(t, "h", second.PasswordHash)
	assert.True(t, mr.Exists(userCacheKeyPrefix+"alice"))
	assert.Equal(t, time.Minute, mr.TTL(userCacheKeyPrefix+"alice"))
}

func TestCachedUserRepository_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	repo, inner, mr := newCachedRepo(t)

	_, err := repo.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.False(t, mr.Exists(userCacheKeyPrefix+"bob"))

	require.NoError(t, repo.Create(ctx, &UserRecord{Username: "bob", PasswordHash: "h", Role: "user"}))
	rec, err := repo.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.Username)
	assert.Equal(t, 2, inner.findCount())
}

func TestCachedUserRepository_CorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	repo, _, mr := newCachedRepo(t)
	require.NoError(t, repo.Create(ctx, &UserRecord{Username: "carol", PasswordHash: "h", Role: "admin"}))
	require.NoError(t, mr.Set(userCacheKeyPrefix+"carol", "{not json"))

	rec, err := repo.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Role)
}

func TestCachedUserRepository_RedisDownFallsBack(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	inner := newMemUserRepository()
	repo := NewCachedUserRepository(inner, client, time.Minute, zap.NewNop())
	require.NoError(t, repo.Create(ctx, &UserRecord{Username: "dave", PasswordHash: "h", Role: "user"}))

	rec, err := repo.FindByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "dave", rec.Username)
}
