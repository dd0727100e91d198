// internal/workers/messaging/client-message/handler.go
package clientmessage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/swruntime"
)

const (
	TaskType = "message"
)

var (
	ErrNoReplyChannel = errors.New("NO_REPLY_CHANNEL")
)

// Worker is the lifecycle control the handler needs.
type Worker interface {
	SkipWaiting(ctx context.Context) error
}

type Handler struct {
	config *Config
	worker Worker
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, worker Worker, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		worker: worker,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(ctx context.Context, ev swruntime.Event) swruntime.WaitUntil {
	msg, ok := ev.(swruntime.MessageEvent)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		if h.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
			defer cancel()
		}
		_, err := h.Execute(ctx, msg)
		return err
	}
}

// Execute acts on one page message. Unknown types are ignored.
func (h *Handler) Execute(ctx context.Context, ev swruntime.MessageEvent) (*Output, error) {
	out := &Output{Type: ev.Message.Type}

	switch ev.Message.Type {
	case TypeSkipWaiting:
		if err := h.worker.SkipWaiting(ctx); err != nil {
			return nil, fmt.Errorf("skip waiting: %w", err)
		}
		out.Handled = true
		h.logger.Info("skip waiting requested by page", nil)

	case TypePing:
		pong := Pong{Type: TypePong, Version: h.config.Version, Timestamp: h.now().UnixMilli()}
		if err := h.reply(ctx, ev, pong); err != nil {
			return nil, err
		}
		out.Handled = true
		out.Replied = true

	default:
		h.logger.Debug("ignoring unknown message", map[string]interface{}{"type": ev.Message.Type})
	}
	return out, nil
}

// reply prefers the message port and falls back to the sending window.
func (h *Handler) reply(ctx context.Context, ev swruntime.MessageEvent, msg interface{}) error {
	if ev.Reply != nil {
		if err := ev.Reply(ctx, msg); err != nil {
			return fmt.Errorf("reply on port: %w", err)
		}
		return nil
	}
	if ev.Source != nil {
		if err := ev.Source.PostMessage(ctx, msg); err != nil {
			return fmt.Errorf("post to client %s: %w", ev.Source.ID(), err)
		}
		return nil
	}
	h.logger.Warn("PING without a reply channel", nil)
	return ErrNoReplyChannel
}
