package pushserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
)

// CachedStore keeps fan-out target lists in Redis. Writes go to the underlying store
// and drop the affected owner and user type entries.
type CachedStore struct {
	Store
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(store Store, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{Store: store, redis: client, ttl: ttl, logger: log}
}

func ownerKey(ownerID string) string { return "push:subs:owner:" + ownerID }
func typeKey(userType string) string { return "push:subs:type:" + userType }

func (c *CachedStore) Save(ctx context.Context, sub *models.StoredSubscription) error {
	if err := c.Store.Save(ctx, sub); err != nil {
		return err
	}
	c.invalidate(ctx, sub)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, ownerID, endpoint string) (*models.StoredSubscription, error) {
	removed, err := c.Store.Delete(ctx, ownerID, endpoint)
	if err != nil {
		return nil, err
	}
	if removed != nil {
		c.invalidate(ctx, removed)
	}
	return removed, nil
}

func (c *CachedStore) Rotate(ctx context.Context, oldEndpoint string, sub *models.StoredSubscription) (*models.StoredSubscription, error) {
	rotated, err := c.Store.Rotate(ctx, oldEndpoint, sub)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, rotated)
	return rotated, nil
}

func (c *CachedStore) ListByOwner(ctx context.Context, ownerID string) ([]models.StoredSubscription, error) {
	return c.cached(ctx, ownerKey(ownerID), func() ([]models.StoredSubscription, error) {
		return c.Store.ListByOwner(ctx, ownerID)
	})
}

func (c *CachedStore) ListByUserType(ctx context.Context, userType string) ([]models.StoredSubscription, error) {
	return c.cached(ctx, typeKey(userType), func() ([]models.StoredSubscription, error) {
		return c.Store.ListByUserType(ctx, userType)
	})
}

func (c *CachedStore) cached(ctx context.Context, key string, load func() ([]models.StoredSubscription, error)) ([]models.StoredSubscription, error) {
	if val, err := c.redis.Get(ctx, key).Result(); err == nil {
		var subs []models.StoredSubscription
		if err := json.Unmarshal([]byte(val), &subs); err == nil {
			return subs, nil
		}
	}

	subs, err := load()
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(subs)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache subscription list failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return subs, nil
}

func (c *CachedStore) invalidate(ctx context.Context, sub *models.StoredSubscription) {
	if err := c.redis.Del(ctx, ownerKey(sub.OwnerID), typeKey(sub.UserType)).Err(); err != nil {
		c.logger.Warn("invalidate subscription cache failed", map[string]interface{}{
			"ownerId":  sub.OwnerID,
			"userType": sub.UserType,
			"error":    err.Error(),
		})
	}
}
