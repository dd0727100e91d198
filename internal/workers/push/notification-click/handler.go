// internal/workers/push/notification-click/handler.go
package notificationclick

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/platform"
)

const (
	TaskType = "notificationclick"
)

type Handler struct {
	config   *Config
	origin   *url.URL
	notifier platform.Notifier
	clients  platform.Clients
	logger   logger.Logger
}

func NewHandler(config *Config, notifier platform.Notifier, clients platform.Clients, log logger.Logger) (*Handler, error) {
	origin, err := url.Parse(config.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	return &Handler{
		config:   config,
		origin:   origin,
		notifier: notifier,
		clients:  clients,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Handle(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	click, _ := ev.(swruntime.NotificationClickEvent)
	input := &Input{
		NotificationID: click.NotificationID,
		Action:         click.Action,
		URL:            click.Data.URL,
	}
	return func(ctx context.Context) error {
		if h.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
			defer cancel()
		}
		_, err := h.Execute(ctx, input)
		return err
	}
}

// Execute closes the notification and, unless it was dismissed, brings exactly one
// window to the target: an existing admin window when there is one, a new window
// otherwise.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.NotificationID != "" {
		if err := h.notifier.Close(ctx, input.NotificationID); err != nil {
			h.logger.Warn("close notification failed", map[string]interface{}{
				"notificationId": input.NotificationID,
				"error":          err.Error(),
			})
		}
	}

	if input.Action == ActionClose {
		return &Output{Outcome: OutcomeDismissed}, nil
	}

	target := h.resolve(input.URL)

	windows, err := h.clients.MatchAll(ctx, platform.MatchOptions{IncludeUncontrolled: true})
	if err != nil {
		h.logger.Warn("match clients failed, opening a new window", map[string]interface{}{"error": err.Error()})
	}

	if w := h.adminWindow(windows); w != nil {
		if err := h.focusAndNavigate(ctx, w, target); err == nil {
			return &Output{Outcome: OutcomeFocused, URL: target, ClientID: w.ID()}, nil
		} else {
			h.logger.Warn("reuse admin window failed, opening a new window", map[string]interface{}{
				"clientId": w.ID(),
				"error":    err.Error(),
			})
		}
	}

	opened, err := h.clients.OpenWindow(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("open window %s: %w", target, err)
	}
	h.logger.Info("opened window for notification", map[string]interface{}{"url": target})
	return &Output{Outcome: OutcomeOpened, URL: target, ClientID: opened.ID()}, nil
}

func (h *Handler) focusAndNavigate(ctx context.Context, w platform.WindowClient, target string) error {
	if err := w.Focus(ctx); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if err := w.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// adminWindow prefers a focused admin window of the origin, then the first one.
func (h *Handler) adminWindow(windows []platform.WindowClient) platform.WindowClient {
	var first platform.WindowClient
	for _, w := range windows {
		if !h.isAdminURL(w.URL()) {
			continue
		}
		if w.Focused() {
			return w
		}
		if first == nil {
			first = w
		}
	}
	return first
}

func (h *Handler) isAdminURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != h.origin.Scheme || u.Host != h.origin.Host {
		return false
	}
	prefix := strings.TrimRight(h.config.AdminPrefix, "/")
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

func (h *Handler) resolve(raw string) string {
	if strings.TrimSpace(raw) == "" {
		raw = h.config.DefaultURL
	}
	ref, err := url.Parse(raw)
	if err != nil {
		ref = &url.URL{Path: h.config.DefaultURL}
	}
	return h.origin.ResolveReference(ref).String()
}
