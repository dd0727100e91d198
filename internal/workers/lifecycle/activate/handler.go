// internal/workers/lifecycle/activate/handler.go
package activate

import (
	"context"
	"errors"
	"fmt"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/metrics"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/platform"
)

const (
	TaskType = "activate"
)

var (
	ErrCacheEviction = errors.New("CACHE_EVICTION_FAILED")
)

type Handler struct {
	config  *Config
	caches  platform.CacheStorage
	clients platform.Clients
	logger  logger.Logger
}

func NewHandler(config *Config, caches platform.CacheStorage, clients platform.Clients, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		caches:  caches,
		clients: clients,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	return func(ctx context.Context) error {
		if h.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
			defer cancel()
		}
		_, err := h.Execute(ctx)
		return err
	}
}

// Execute deletes every cache generation other than the current one, then claims the
// open windows. Clients are claimed even when listing or evicting caches failed.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	out := &Output{Kept: h.config.CacheName}

	var evictErr error
	names, err := h.caches.Keys(ctx)
	if err != nil {
		h.logger.Error("list caches failed", map[string]interface{}{
			"error": err.Error(),
		})
		evictErr = fmt.Errorf("%w: list caches: %v", ErrCacheEviction, err)
		names = nil
	}

	for _, name := range names {
		if name == h.config.CacheName {
			continue
		}
		if _, err := h.caches.Delete(ctx, name); err != nil {
			h.logger.Error("delete stale cache failed", map[string]interface{}{
				"cache": name,
				"error": err.Error(),
			})
			evictErr = fmt.Errorf("%w: %s: %v", ErrCacheEviction, name, err)
			continue
		}
		out.Deleted = append(out.Deleted, name)
	}
	metrics.CacheEvictions.Add(float64(len(out.Deleted)))

	if err := h.clients.Claim(ctx); err != nil {
		return out, fmt.Errorf("claim clients: %w", err)
	}
	out.Claimed = true

	h.logger.Info("activated", map[string]interface{}{
		"cache":   out.Kept,
		"deleted": out.Deleted,
	})
	return out, evictErr
}
