// internal/workers/push/push-receive/handler.go
package pushreceive

import (
	"context"
	"errors"
	"fmt"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/metrics"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/platform"
	"storefront-push/pkg/notification"
)

const (
	TaskType = "push"
)

var (
	ErrNotificationNotShown = errors.New("NOTIFICATION_NOT_SHOWN")
)

type Handler struct {
	config   *Config
	notifier platform.Notifier
	logger   logger.Logger
}

func NewHandler(config *Config, notifier platform.Notifier, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Handle returns the show-notification work as the event extension. The worker must
// stay alive until the notification is on screen.
func (h *Handler) Handle(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	var input Input
	if push, ok := ev.(swruntime.PushEvent); ok {
		input.Data = push.Data
	}
	return func(ctx context.Context) error {
		if h.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
			defer cancel()
		}
		_, err := h.Execute(ctx, &input)
		return err
	}
}

// Execute renders one push message. A body that cannot be parsed is shown with the
// default payload; a rejected show is retried once with minimal options.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	raw, parseErr := notification.Parse(input.Data)
	if parseErr != nil {
		metrics.PayloadFallbacks.Inc()
		h.logger.Warn("push payload unparsable, using defaults", map[string]interface{}{
			"error": parseErr.Error(),
			"bytes": len(input.Data),
		})
	}
	payload := notification.Normalize(raw, parseErr, h.config.Defaults)

	out := &Output{
		Title:    payload.Title,
		Body:     payload.Body,
		URL:      payload.URL,
		Tag:      payload.Tag,
		Variant:  VariantFull,
		Fallback: payload.Fallback,
	}

	id, err := h.notifier.Show(ctx, payload.Title, notification.BuildOptions(payload, h.config.Display))
	if err == nil {
		out.NotificationID = id
		metrics.NotificationsShown.WithLabelValues(VariantFull).Inc()
		h.logger.Info("notification shown", map[string]interface{}{
			"title": payload.Title,
			"tag":   payload.Tag,
			"id":    payload.ID,
		})
		return out, nil
	}

	h.logger.Warn("show notification failed, retrying with minimal options", map[string]interface{}{
		"error": err.Error(),
		"title": payload.Title,
	})

	title, opts := notification.MinimalOptions(payload, h.config.Defaults, h.config.Display)
	id, retryErr := h.notifier.Show(ctx, title, opts)
	if retryErr != nil {
		h.logger.Error("minimal notification failed", map[string]interface{}{
			"error":      retryErr.Error(),
			"firstError": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v (first attempt: %v)", ErrNotificationNotShown, retryErr, err)
	}

	out.NotificationID = id
	out.Title = title
	out.Body = opts.Body
	out.Variant = VariantMinimal
	metrics.NotificationsShown.WithLabelValues(VariantMinimal).Inc()
	return out, nil
}
