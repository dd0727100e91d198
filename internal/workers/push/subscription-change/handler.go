// internal/workers/push/subscription-change/handler.go
package subscriptionchange

import (
	"context"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/swruntime"
	"storefront-push/internal/models"
	"storefront-push/internal/platform"
)

const (
	TaskType = "pushsubscriptionchange"
)

// Rotator replaces a stored subscription on the push server.
type Rotator interface {
	Rotate(ctx context.Context, oldEndpoint string, sub *models.PushSubscription) error
}

type Handler struct {
	config  *Config
	push    platform.PushManager
	rotator Rotator
	logger  logger.Logger
}

func NewHandler(config *Config, push platform.PushManager, rotator Rotator, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		push:    push,
		rotator: rotator,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	change, _ := ev.(swruntime.PushSubscriptionChangeEvent)
	input := &Input{OldSubscription: change.OldSubscription, NewSubscription: change.NewSubscription}
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

// Execute re-subscribes once and reports the replacement to the server so the old
// endpoint stops receiving deliveries.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{}
	if input.OldSubscription != nil {
		out.OldEndpoint = input.OldSubscription.Endpoint
	}

	sub := input.NewSubscription
	if sub != nil {
		out.KeySource = KeyFromPlatform
	} else {
		key, source := h.applicationServerKey(input.OldSubscription)
		if key == "" {
			h.logger.Error("no application server key for resubscription", map[string]interface{}{
				"oldEndpoint": out.OldEndpoint,
			})
			return nil, errs.NewConfigurationError("no applicationServerKey on the expired subscription or in configuration")
		}
		out.KeySource = source

		var err error
		sub, err = h.push.Subscribe(ctx, platform.SubscribeOptions{
			UserVisibleOnly:      true,
			ApplicationServerKey: key,
		})
		if err != nil {
			h.logger.Error("resubscribe failed", map[string]interface{}{
				"oldEndpoint": out.OldEndpoint,
				"error":       err.Error(),
			})
			return nil, errs.NewNetworkError("resubscribe", err)
		}
	}
	out.NewEndpoint = sub.Endpoint

	if err := h.rotator.Rotate(ctx, out.OldEndpoint, sub); err != nil {
		h.logger.Error("rotate subscription on server failed", map[string]interface{}{
			"oldEndpoint": out.OldEndpoint,
			"newEndpoint": out.NewEndpoint,
			"error":       err.Error(),
		})
		return nil, errs.NewSubscriptionRotatedError(out.NewEndpoint).WithMetadata("cause", err.Error())
	}

	h.logger.Info("subscription rotated", map[string]interface{}{
		"oldEndpoint": out.OldEndpoint,
		"newEndpoint": out.NewEndpoint,
		"keySource":   out.KeySource,
	})
	return out, nil
}

func (h *Handler) applicationServerKey(old *models.PushSubscription) (string, string) {
	if old != nil && old.ApplicationServerKey != "" {
		return old.ApplicationServerKey, KeyFromOldSubscription
	}
	return h.config.ApplicationServerKey, KeyFromConfig
}
