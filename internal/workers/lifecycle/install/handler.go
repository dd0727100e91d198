// internal/workers/lifecycle/install/handler.go
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

const (
	TaskType = "install"
)

// Worker is the lifecycle control the handler needs.
type Worker interface {
	SkipWaiting(ctx context.Context) error
}

type Handler struct {
	config  *Config
	caches  platform.CacheStorage
	fetcher platform.Fetcher
	worker  Worker
	logger  logger.Logger
}

func NewHandler(config *Config, caches platform.CacheStorage, fetcher platform.Fetcher, worker Worker, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		caches:  caches,
		fetcher: fetcher,
		worker:  worker,
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

// Execute precaches the asset list and asks to skip waiting. Asset failures are
// logged and never fail the install.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	out := &Output{CacheName: h.config.CacheName}

	cache, err := h.caches.Open(ctx, h.config.CacheName)
	if err != nil {
		h.logger.Error("open cache failed, installing without precache", map[string]interface{}{
			"cache": h.config.CacheName,
			"error": err.Error(),
		})
		out.Failed = append(out.Failed, h.config.Assets...)
	} else {
		for _, asset := range h.config.Assets {
			if err := h.precache(ctx, cache, asset); err != nil {
				h.logger.Warn("asset not cached", map[string]interface{}{
					"asset": asset,
					"error": err.Error(),
				})
				out.Failed = append(out.Failed, asset)
				continue
			}
			out.Cached = append(out.Cached, asset)
		}
	}

	h.logger.Info("precache finished", map[string]interface{}{
		"cache":  out.CacheName,
		"cached": len(out.Cached),
		"failed": len(out.Failed),
	})

	if err := h.worker.SkipWaiting(ctx); err != nil {
		return out, fmt.Errorf("skip waiting: %w", err)
	}
	return out, nil
}

func (h *Handler) precache(ctx context.Context, cache platform.Cache, asset string) error {
	target, err := resolve(h.config.Origin, asset)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.fetcher.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	return cache.Put(ctx, asset, models.CachedAsset{
		URL:        asset,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now().UTC(),
	})
}

func resolve(origin, path string) (string, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse asset %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
