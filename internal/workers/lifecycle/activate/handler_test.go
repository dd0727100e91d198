package activate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/platform"
	"storefront-push/internal/platform/memory"
)

type stickyStorage struct {
	*memory.CacheStorage
	sticky string
}

func (s stickyStorage) Delete(ctx context.Context, name string) (bool, error) {
	if name == s.sticky {
		return false, errors.New("locked")
	}
	return s.CacheStorage.Delete(ctx, name)
}

type unlistableStorage struct {
	*memory.CacheStorage
}

func (unlistableStorage) Keys(ctx context.Context) ([]string, error) {
	return nil, errors.New("redis down")
}

func newClients(t *testing.T) *memory.Clients {
	t.Helper()
	c, err := memory.NewClients("https://shop.example.test")
	require.NoError(t, err)
	return c
}

func TestHandler_Execute_OneGenerationSurvives(t *testing.T) {
	for _, stale := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("%d stale", stale), func(t *testing.T) {
			ctx := context.Background()
			caches := memory.NewCacheStorage()
			for i := 1; i <= stale; i++ {
				_, err := caches.Open(ctx, fmt.Sprintf("shop-v%d", i))
				require.NoError(t, err)
			}
			_, err := caches.Open(ctx, "other-app-cache")
			require.NoError(t, err)
			_, err = caches.Open(ctx, "shop-v99")
			require.NoError(t, err)

			clients := newClients(t)
			tab := clients.AddWindow("/admin", false)

			h := NewHandler(&Config{CacheName: "shop-v99"}, caches, clients, logger.NewTestLogger(t))
			out, err := h.Execute(ctx)
			require.NoError(t, err)
			assert.Len(t, out.Deleted, stale+1)
			assert.True(t, out.Claimed)

			names, _ := caches.Keys(ctx)
			assert.Equal(t, []string{"shop-v99"}, names)
			assert.True(t, tab.Controlled())
		})
	}
}

func TestHandler_Execute_CurrentMissingStillEvicts(t *testing.T) {
	ctx := context.Background()
	caches := memory.NewCacheStorage()
	_, _ = caches.Open(ctx, "shop-v1")

	h := NewHandler(&Config{CacheName: "shop-v2"}, caches, newClients(t), logger.NewTestLogger(t))
	out, err := h.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop-v1"}, out.Deleted)

	names, _ := caches.Keys(ctx)
	assert.Empty(t, names)
}

func TestHandler_Execute_EvictionFailureStillClaims(t *testing.T) {
	ctx := context.Background()
	base := memory.NewCacheStorage()
	_, _ = base.Open(ctx, "shop-v1")
	_, _ = base.Open(ctx, "shop-v2")
	_, _ = base.Open(ctx, "shop-v3")

	var storage platform.CacheStorage = stickyStorage{CacheStorage: base, sticky: "shop-v1"}
	h := NewHandler(&Config{CacheName: "shop-v3"}, storage, newClients(t), logger.NewTestLogger(t))

	out, err := h.Execute(ctx)
	assert.ErrorIs(t, err, ErrCacheEviction)
	assert.Equal(t, []string{"shop-v2"}, out.Deleted)
	assert.True(t, out.Claimed)
}

func TestHandler_Execute_ListFailureStillClaims(t *testing.T) {
	ctx := context.Background()
	base := memory.NewCacheStorage()
	_, _ = base.Open(ctx, "shop-v1")

	clients := newClients(t)
	tab := clients.AddWindow("/admin/orders", false)

	var storage platform.CacheStorage = unlistableStorage{CacheStorage: base}
	h := NewHandler(&Config{CacheName: "shop-v2"}, storage, clients, logger.NewTestLogger(t))

	out, err := h.Execute(ctx)
	assert.ErrorIs(t, err, ErrCacheEviction)
	assert.Contains(t, err.Error(), "redis down")
	require.NotNil(t, out)
	assert.Empty(t, out.Deleted)
	assert.True(t, out.Claimed)
	assert.True(t, tab.Controlled())
}
