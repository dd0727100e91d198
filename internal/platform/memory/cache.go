package memory

import (
	"context"
	"sort"
	"sync"

	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

// CacheStorage keeps named caches in process memory.
type CacheStorage struct {
	mu     sync.Mutex
	caches map[string]*cache
}

func NewCacheStorage() *CacheStorage {
	return &CacheStorage{caches: make(map[string]*cache)}
}

func (s *CacheStorage) Open(ctx context.Context, name string) (platform.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = &cache{entries: make(map[string]models.CachedAsset)}
		s.caches[name] = c
	}
	return c, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	return true, nil
}

type cache struct {
	mu      sync.RWMutex
	entries map[string]models.CachedAsset
}

func (c *cache) Put(ctx context.Context, url string, asset models.CachedAsset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	asset.Body = append([]byte(nil), asset.Body...)
	c.entries[url] = asset
	return nil
}

func (c *cache) Match(ctx context.Context, url string) (*models.CachedAsset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	asset, ok := c.entries[url]
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

func (c *cache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
