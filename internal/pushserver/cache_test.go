package pushserver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/common/logger"
)

func newCachedStore(t *testing.T, backing Store) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCachedStore(backing, client, time.Minute, logger.NewTestLogger(t)), mr
}

func TestCachedStore_ReadThrough(t *testing.T) {
	backing := newMemStore(adminSub("https://push.example.test/a", "owner-1"))
	cached, mr := newCachedStore(t, backing)
	ctx := context.Background()

	subs, err := cached.ListByUserType(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, mr.Exists("push:subs:type:admin"))
	assert.Equal(t, time.Minute, mr.TTL("push:subs:type:admin"))

	subs, err = cached.ListByUserType(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, 1, backing.lists, "second read is served from redis")
}

func TestCachedStore_WritesInvalidate(t *testing.T) {
	backing := newMemStore(adminSub("https://push.example.test/a", "owner-1"))
	cached, mr := newCachedStore(t, backing)
	ctx := context.Background()

	_, err := cached.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	_, err = cached.ListByUserType(ctx, "admin")
	require.NoError(t, err)

	sub := adminSub("https://push.example.test/b", "owner-1")
	require.NoError(t, cached.Save(ctx, &sub))
	assert.False(t, mr.Exists("push:subs:owner:owner-1"))
	assert.False(t, mr.Exists("push:subs:type:admin"))

	subs, err := cached.ListByUserType(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	removed, err := cached.Delete(ctx, "", "https://push.example.test/a")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.False(t, mr.Exists("push:subs:type:admin"))

	subs, err = cached.ListByUserType(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestCachedStore_RotateInvalidatesOwner(t *testing.T) {
	backing := newMemStore(adminSub("https://push.example.test/old", "owner-1"))
	cached, mr := newCachedStore(t, backing)
	ctx := context.Background()

	_, err := cached.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)

	next := adminSub("https://push.example.test/new", "")
	_, err = cached.Rotate(ctx, "https://push.example.test/old", &next)
	require.NoError(t, err)
	assert.False(t, mr.Exists("push:subs:owner:owner-1"))

	subs, err := cached.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.test/new", subs[0].Endpoint)
}

func TestCachedStore_RedisDownFallsBackToStore(t *testing.T) {
	backing := newMemStore(adminSub("https://push.example.test/a", "owner-1"))
	cached, mr := newCachedStore(t, backing)
	mr.Close()

	subs, err := cached.ListByUserType(context.Background(), "admin")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	sub := adminSub("https://push.example.test/b", "owner-2")
	assert.NoError(t, cached.Save(context.Background(), &sub))
}
