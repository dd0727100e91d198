// internal/workers/network/fetch-intercept/handler.go
package fetchintercept

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/metrics"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

const (
	TaskType = "fetch"
)

type Handler struct {
	config  *Config
	origin  *url.URL
	caches  platform.CacheStorage
	fetcher platform.Fetcher
	logger  logger.Logger
}

func NewHandler(config *Config, caches platform.CacheStorage, fetcher platform.Fetcher, log logger.Logger) (*Handler, error) {
	origin, err := url.Parse(config.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	return &Handler{
		config:  config,
		origin:  origin,
		caches:  caches,
		fetcher: fetcher,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

// HandleFetch routes API calls to the network only and admin page loads through
// network-first with cache write. Anything else is not intercepted.
func (h *Handler) HandleFetch(ctx context.Context, ev *swruntime.FetchEvent) swruntime.RespondWith {
	req := ev.Request
	path := req.URL.Path

	switch {
	case h.isAPI(path):
		return func(ctx context.Context) (*http.Response, error) {
			return h.networkOnly(ctx, req), nil
		}
	case h.isAdmin(path) && req.Method == http.MethodGet:
		return func(ctx context.Context) (*http.Response, error) {
			return h.networkFirst(ctx, req), nil
		}
	default:
		return nil
	}
}

// Execute runs one request through the handler. handled is false for requests that
// pass through untouched.
func (h *Handler) Execute(ctx context.Context, req *http.Request) (resp *http.Response, handled bool, err error) {
	respond := h.HandleFetch(ctx, &swruntime.FetchEvent{Request: req})
	if respond == nil {
		return nil, false, nil
	}
	resp, err = respond(ctx)
	return resp, true, err
}

func (h *Handler) isAPI(path string) bool {
	return h.config.APIPrefix != "" && strings.HasPrefix(path, h.config.APIPrefix)
}

func (h *Handler) isAdmin(path string) bool {
	prefix := strings.TrimRight(h.config.AdminPrefix, "/")
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (h *Handler) networkOnly(ctx context.Context, req *http.Request) *http.Response {
	resp, err := h.forward(ctx, req)
	if err == nil {
		metrics.FetchResponses.WithLabelValues(SourceNetwork).Inc()
		return resp
	}

	h.logger.Warn("api request failed", map[string]interface{}{
		"path":  req.URL.Path,
		"error": err.Error(),
	})
	metrics.FetchResponses.WithLabelValues(SourceAPIError).Inc()

	body, _ := json.Marshal(apiError{
		Error:   "network_error",
		Message: "The server could not be reached. Please try again.",
		Path:    req.URL.Path,
	})
	return newResponse(req, http.StatusServiceUnavailable, "application/json", body)
}

func (h *Handler) networkFirst(ctx context.Context, req *http.Request) *http.Response {
	key := req.URL.RequestURI()

	resp, err := h.forward(ctx, req)
	if err == nil {
		metrics.FetchResponses.WithLabelValues(SourceNetwork).Inc()
		if resp.StatusCode != http.StatusOK {
			return resp
		}
		return h.store(ctx, req, key, resp)
	}

	h.logger.Info("admin page offline, falling back to cache", map[string]interface{}{
		"path":  key,
		"error": err.Error(),
	})

	if cached := h.match(ctx, key); cached != nil {
		metrics.FetchResponses.WithLabelValues(SourceCache).Inc()
		return fromAsset(req, cached)
	}
	if shell := h.match(ctx, h.config.ShellPath); shell != nil {
		metrics.FetchResponses.WithLabelValues(SourceShell).Inc()
		return fromAsset(req, shell)
	}

	metrics.FetchResponses.WithLabelValues(SourceOffline).Inc()
	return newResponse(req, http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlinePage))
}

// store writes a copy of resp into the active cache and returns an equivalent
// response with a fresh body.
func (h *Handler) store(ctx context.Context, req *http.Request, key string, resp *http.Response) *http.Response {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		h.logger.Warn("read admin response failed", map[string]interface{}{"path": key, "error": err.Error()})
		return newResponse(req, http.StatusBadGateway, "text/plain; charset=utf-8", nil)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	cache, err := h.caches.Open(ctx, h.config.CacheName)
	if err == nil {
		err = cache.Put(ctx, key, models.CachedAsset{
			URL:        key,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			StoredAt:   time.Now().UTC(),
		})
	}
	if err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{"path": key, "error": err.Error()})
	}
	return resp
}

func (h *Handler) match(ctx context.Context, key string) *models.CachedAsset {
	cache, err := h.caches.Open(ctx, h.config.CacheName)
	if err != nil {
		return nil
	}
	asset, err := cache.Match(ctx, key)
	if err != nil {
		h.logger.Warn("cache read failed", map[string]interface{}{"path": key, "error": err.Error()})
		return nil
	}
	return asset
}

func (h *Handler) forward(ctx context.Context, in *http.Request) (*http.Response, error) {
	target := h.origin.ResolveReference(&url.URL{Path: in.URL.Path, RawQuery: in.URL.RawQuery})

	var body io.Reader
	if in.Body != nil && in.Method != http.MethodGet && in.Method != http.MethodHead {
		body = in.Body
	}
	out, err := http.NewRequestWithContext(ctx, in.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	out.Header = in.Header.Clone()
	out.Header.Del("Connection")
	if in.ContentLength > 0 {
		out.ContentLength = in.ContentLength
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		resp, err := h.fetcher.Do(out.WithContext(ctx))
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return h.fetcher.Do(out)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func fromAsset(req *http.Request, asset *models.CachedAsset) *http.Response {
	resp := newResponse(req, asset.StatusCode, "", asset.Body)
	for k, v := range asset.Header {
		resp.Header[k] = append([]string(nil), v...)
	}
	resp.Header.Set("Content-Length", strconv.Itoa(len(asset.Body)))
	resp.Header.Set("X-Served-From", "worker-cache")
	return resp
}

func newResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
