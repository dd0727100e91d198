// Package rediscache stores the worker's asset caches in Redis so they outlive the
// agent process.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

// CacheStorage keeps the set of cache names under "<prefix>:caches" and each cache
// as a hash "<prefix>:cache:<name>" of URL to encoded asset.
type CacheStorage struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable, prefix string) *CacheStorage {
	if prefix == "" {
		prefix = "sw"
	}
	return &CacheStorage{client: client, prefix: prefix}
}

func (s *CacheStorage) namesKey() string {
	return s.prefix + ":caches"
}

func (s *CacheStorage) cacheKey(name string) string {
	return fmt.Sprintf("%s:cache:%s", s.prefix, name)
}

func (s *CacheStorage) Open(ctx context.Context, name string) (platform.Cache, error) {
	if err := s.client.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	return &cache{client: s.client, key: s.cacheKey(name)}, nil
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	removed, err := s.client.SRem(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	if err := s.client.Del(ctx, s.cacheKey(name)).Err(); err != nil {
		return false, fmt.Errorf("delete cache %s entries: %w", name, err)
	}
	return removed > 0, nil
}

type cache struct {
	client redis.Cmdable
	key    string
}

func (c *cache) Put(ctx context.Context, url string, asset models.CachedAsset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode asset %s: %w", url, err)
	}
	if err := c.client.HSet(ctx, c.key, url, data).Err(); err != nil {
		return fmt.Errorf("put %s: %w", url, err)
	}
	return nil
}

func (c *cache) Match(ctx context.Context, url string) (*models.CachedAsset, error) {
	data, err := c.client.HGet(ctx, c.key, url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", url, err)
	}
	var asset models.CachedAsset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", url, err)
	}
	return &asset, nil
}

func (c *cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.client.HKeys(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
