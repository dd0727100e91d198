package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"storefront-push/internal/platform"
	"storefront-push/pkg/notification"
)

// ShowRecord is one Show call that reached the notification center.
type ShowRecord struct {
	Title   string
	Options notification.Options
	Err     error
	// Alerted is false when a same-tagged notification was silently replaced.
	Alerted bool
}

// NotificationCenter keeps visible notifications with platform tag semantics: a new
// notification replaces a visible one with the same tag, and re-alerts only when
// renotify is set.
type NotificationCenter struct {
	mu      sync.Mutex
	visible []platform.ShownNotification
	history []ShowRecord
	failFn  func(title string, opts notification.Options) error
	closed  []string
}

func NewNotificationCenter() *NotificationCenter {
	return &NotificationCenter{}
}

func (c *NotificationCenter) Show(ctx context.Context, title string, opts notification.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts.Renotify && opts.Tag == "" {
		err := fmt.Errorf("%w: renotify requires a tag", platform.ErrInvalidState)
		c.history = append(c.history, ShowRecord{Title: title, Options: opts, Err: err})
		return "", err
	}
	if c.failFn != nil {
		if err := c.failFn(title, opts); err != nil {
			c.history = append(c.history, ShowRecord{Title: title, Options: opts, Err: err})
			return "", err
		}
	}

	alerted := true
	if opts.Tag != "" {
		kept := c.visible[:0]
		for _, n := range c.visible {
			if n.Options.Tag == opts.Tag {
				alerted = opts.Renotify
				continue
			}
			kept = append(kept, n)
		}
		c.visible = kept
	}

	id := uuid.NewString()
	c.visible = append(c.visible, platform.ShownNotification{ID: id, Title: title, Options: opts})
	c.history = append(c.history, ShowRecord{Title: title, Options: opts, Alerted: alerted})
	return id, nil
}

func (c *NotificationCenter) Close(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.visible {
		if n.ID == id {
			c.visible = append(c.visible[:i], c.visible[i+1:]...)
			c.closed = append(c.closed, id)
			return nil
		}
	}
	return nil
}

// Visible lists shown notifications, filtered by tag unless tag is empty.
func (c *NotificationCenter) Visible(ctx context.Context, tag string) ([]platform.ShownNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]platform.ShownNotification, 0, len(c.visible))
	for _, n := range c.visible {
		if tag == "" || n.Options.Tag == tag {
			out = append(out, n)
		}
	}
	return out, nil
}

// FailWhen installs a hook that can reject a Show call.
func (c *NotificationCenter) FailWhen(fn func(title string, opts notification.Options) error) {
	c.mu.Lock()
	c.failFn = fn
	c.mu.Unlock()
}

func (c *NotificationCenter) History() []ShowRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ShowRecord, len(c.history))
	copy(out, c.history)
	return out
}

func (c *NotificationCenter) Closed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.closed...)
}
