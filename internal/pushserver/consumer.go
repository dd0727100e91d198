package pushserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront-push/internal/common/logger"
	"storefront-push/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventNotifier sends the notification for one business event.
type EventNotifier interface {
	Notify(ctx context.Context, ev models.StorefrontEvent, templates *Templates) (*models.SendResponse, error)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaReader(cfg ConsumerConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
}

// Consumer turns storefront events into admin notifications. Every message is
// committed after one attempt; delivery is best effort.
type Consumer struct {
	reader     MessageReader
	notifier   EventNotifier
	templates  *Templates
	logger     logger.Logger
	retryDelay time.Duration
}

func NewConsumer(reader MessageReader, notifier EventNotifier, templates *Templates, log logger.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		notifier:   notifier,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"component": "event-consumer"}),
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()

	c.logger.Info("consumer started", nil)
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer shutting down", nil)
				return nil
			}
			c.logger.Warn("fetch failed", map[string]interface{}{"error": err.Error()})
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Warn("commit failed", map[string]interface{}{
				"offset": m.Offset,
				"error":  err.Error(),
			})
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var ev models.StorefrontEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.logger.Warn("undecodable event skipped", map[string]interface{}{
			"key":    string(m.Key),
			"offset": m.Offset,
			"error":  err.Error(),
		})
		return
	}

	resp, err := c.notifier.Notify(ctx, ev, c.templates)
	if err != nil {
		c.logger.Error("event notification failed", map[string]interface{}{
			"eventId":   ev.ID,
			"eventType": ev.Type,
			"error":     err.Error(),
		})
		return
	}
	if resp != nil {
		c.logger.Info("event notification sent", map[string]interface{}{
			"eventId":      ev.ID,
			"eventType":    ev.Type,
			"successCount": resp.SuccessCount,
			"total":        resp.TotalSubscriptions,
		})
	}
}
