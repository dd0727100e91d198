package fetchintercept

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
	"storefront-push/internal/platform/memory"
)

type origin struct {
	srv  *httptest.Server
	down atomic.Bool
	hits atomic.Int32
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"orders":[]}`))
		case r.URL.Path == "/admin/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("page " + r.URL.RequestURI()))
		}
	}))
	t.Cleanup(o.srv.Close)
	return o
}

// Do fails like a dropped connection while the origin is down.
func (o *origin) Do(req *http.Request) (*http.Response, error) {
	if o.down.Load() {
		return nil, &netError{}
	}
	return o.srv.Client().Do(req)
}

type netError struct{}

func (*netError) Error() string { return "dial tcp: connection refused" }

func newHandler(t *testing.T, o *origin, caches *memory.CacheStorage) *Handler {
	t.Helper()
	cfg := LoadConfig()
	cfg.Origin = o.srv.URL
	cfg.CacheName = "shop-v1"
	h, err := NewHandler(cfg, caches, o, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHandler_PassThroughOutsideScope(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o, memory.NewCacheStorage())

	for _, path := range []string{"/", "/products/12", "/administrator", "/static/app.js"} {
		_, handled, err := h.Execute(context.Background(), httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.False(t, handled, path)
	}
	assert.Equal(t, int32(0), o.hits.Load())
}

func TestHandler_AdminNetworkFirstWritesCache(t *testing.T) {
	ctx := context.Background()
	o := newOrigin(t)
	caches := memory.NewCacheStorage()
	h := newHandler(t, o, caches)

	resp, handled, err := h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/admin/orders?page=2", nil))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "page /admin/orders?page=2", readBody(t, resp))

	cache, _ := caches.Open(ctx, "shop-v1")
	asset, err := cache.Match(ctx, "/admin/orders?page=2")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "page /admin/orders?page=2", string(asset.Body))
}

func TestHandler_AdminNonOKNotCached(t *testing.T) {
	ctx := context.Background()
	o := newOrigin(t)
	caches := memory.NewCacheStorage()
	h := newHandler(t, o, caches)

	resp, _, err := h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/admin/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cache, _ := caches.Open(ctx, "shop-v1")
	keys, _ := cache.Keys(ctx)
	assert.Empty(t, keys)
}

func TestHandler_AdminOfflineFallbacks(t *testing.T) {
	ctx := context.Background()
	o := newOrigin(t)
	caches := memory.NewCacheStorage()
	h := newHandler(t, o, caches)

	cache, _ := caches.Open(ctx, "shop-v1")
	require.NoError(t, cache.Put(ctx, "/admin/orders", models.CachedAsset{URL: "/admin/orders", StatusCode: 200, Body: []byte("cached orders")}))
	o.down.Store(true)

	resp, _, err := h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, "cached orders", readBody(t, resp))
	assert.Equal(t, "worker-cache", resp.Header.Get("X-Served-From"))

	resp, _, err = h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/admin/invoices", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "You are offline")

	require.NoError(t, cache.Put(ctx, "/admin", models.CachedAsset{URL: "/admin", StatusCode: 200, Body: []byte("shell")}))
	resp, _, err = h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/admin/invoices", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shell", readBody(t, resp))
}

func TestHandler_APINetworkOnly(t *testing.T) {
	ctx := context.Background()
	o := newOrigin(t)
	caches := memory.NewCacheStorage()
	h := newHandler(t, o, caches)

	resp, handled, err := h.Execute(ctx, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, `{"orders":[]}`, readBody(t, resp))

	names, _ := caches.Keys(ctx)
	assert.Empty(t, names)

	o.down.Store(true)
	resp, _, err = h.Execute(ctx, httptest.NewRequest(http.MethodPost, "/api/push/send", strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, "network_error", body["error"])
	assert.Equal(t, "/api/push/send", body["path"])
}

func TestHandler_AdminNonGETPassesThrough(t *testing.T) {
	o := newOrigin(t)
	h := newHandler(t, o, memory.NewCacheStorage())

	_, handled, err := h.Execute(context.Background(), httptest.NewRequest(http.MethodPost, "/admin/orders", strings.NewReader("a=b")))
	require.NoError(t, err)
	assert.False(t, handled)
}
