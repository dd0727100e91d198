package install

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
	"storefront-push/internal/platform/memory"
)

type fakeWorker struct {
	calls int
	err   error
}

func (f *fakeWorker) SkipWaiting(ctx context.Context) error {
	f.calls++
	return f.err
}

type failingStorage struct{ platform.CacheStorage }

func (failingStorage) Open(ctx context.Context, name string) (platform.Cache, error) {
	return nil, errors.New("quota exceeded")
}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/manifest+json")
		w.Write([]byte(`{"name":"Shopfront"}`))
	})
	mux.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>admin shell</html>"))
	})
	mux.HandleFunc("/icons/icon-192x192.png", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_Execute_PartialFailureStillInstalls(t *testing.T) {
	ctx := context.Background()
	origin := newOrigin(t)
	caches := memory.NewCacheStorage()
	worker := &fakeWorker{}

	h := NewHandler(&Config{
		CacheName: "shop-v2",
		Origin:    origin.URL,
		Assets:    []string{"/manifest.json", "/admin", "/icons/icon-192x192.png"},
		Timeout:   5 * time.Second,
	}, caches, origin.Client(), worker, logger.NewTestLogger(t))

	out, err := h.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/manifest.json", "/admin"}, out.Cached)
	assert.Equal(t, []string{"/icons/icon-192x192.png"}, out.Failed)
	assert.Equal(t, 1, worker.calls)

	cache, _ := caches.Open(ctx, "shop-v2")
	asset, err := cache.Match(ctx, "/admin")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "<html>admin shell</html>", string(asset.Body))
}

func TestHandler_Execute_UnreachableOrigin(t *testing.T) {
	worker := &fakeWorker{}
	h := NewHandler(&Config{
		CacheName: "shop-v1",
		Origin:    "http://127.0.0.1:1",
		Assets:    []string{"/admin"},
	}, memory.NewCacheStorage(), http.DefaultClient, worker, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Cached)
	assert.Equal(t, []string{"/admin"}, out.Failed)
	assert.Equal(t, 1, worker.calls)
}

func TestHandler_Execute_CacheUnavailable(t *testing.T) {
	worker := &fakeWorker{}
	h := NewHandler(&Config{CacheName: "shop-v1", Origin: "http://example.test", Assets: []string{"/admin"}},
		failingStorage{}, http.DefaultClient, worker, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/admin"}, out.Failed)
	assert.Equal(t, 1, worker.calls)
}

func TestHandler_Handle_SkipWaitingError(t *testing.T) {
	worker := &fakeWorker{err: errors.New("no registration")}
	h := NewHandler(&Config{CacheName: "shop-v1"}, memory.NewCacheStorage(), http.DefaultClient, worker, logger.NewTestLogger(t))

	wait := h.Handle(context.Background(), nil)
	require.NotNil(t, wait)
	assert.Error(t, wait(context.Background()))
}

func TestHandler_CachedAssetKeepsHeaders(t *testing.T) {
	ctx := context.Background()
	origin := newOrigin(t)
	caches := memory.NewCacheStorage()
	h := NewHandler(&Config{CacheName: "shop-v1", Origin: origin.URL, Assets: []string{"/manifest.json"}},
		caches, origin.Client(), &fakeWorker{}, logger.NewNoOpLogger())

	_, err := h.Execute(ctx)
	require.NoError(t, err)

	cache, _ := caches.Open(ctx, "shop-v1")
	var asset *models.CachedAsset
	asset, err = cache.Match(ctx, "/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "application/manifest+json", http.Header(asset.Header).Get("Content-Type"))
}
