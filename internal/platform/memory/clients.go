package memory

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"storefront-push/internal/platform"
)

// Clients is the set of open windows of one origin.
type Clients struct {
	mu      sync.Mutex
	origin  *url.URL
	windows []*Window
	opened  []string
	openErr error
}

func NewClients(origin string) (*Clients, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	return &Clients{origin: u}, nil
}

// AddWindow registers an already open window.
func (c *Clients) AddWindow(rawURL string, controlled bool) *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &Window{id: uuid.NewString(), url: c.resolve(rawURL), controlled: controlled, owner: c}
	c.windows = append(c.windows, w)
	return w
}

func (c *Clients) MatchAll(ctx context.Context, opts platform.MatchOptions) ([]platform.WindowClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.WindowClient
	for _, w := range c.windows {
		if w.controlled || opts.IncludeUncontrolled {
			out = append(out, w)
		}
	}
	return out, nil
}

func (c *Clients) OpenWindow(ctx context.Context, rawURL string) (platform.WindowClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	w := &Window{id: uuid.NewString(), url: c.resolve(rawURL), controlled: true, owner: c}
	c.windows = append(c.windows, w)
	c.opened = append(c.opened, w.url)
	c.focusLocked(w)
	return w, nil
}

func (c *Clients) Claim(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.windows {
		w.controlled = true
	}
	return nil
}

// Opened lists URLs of windows opened through OpenWindow.
func (c *Clients) Opened() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...)
}

// FailOpen makes OpenWindow return err.
func (c *Clients) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// Windows returns a snapshot of the open windows.
func (c *Clients) Windows() []*Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Window(nil), c.windows...)
}

func (c *Clients) resolve(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return c.origin.ResolveReference(ref).String()
}

func (c *Clients) focusLocked(target *Window) {
	for _, w := range c.windows {
		w.focused = w == target
	}
}

// Window is one open page.
type Window struct {
	id         string
	url        string
	focused    bool
	controlled bool
	inbox      []interface{}
	focusErr   error
	owner      *Clients
}

func (w *Window) ID() string { return w.id }

func (w *Window) URL() string {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	return w.url
}

func (w *Window) Focused() bool {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	return w.focused
}

func (w *Window) Controlled() bool {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	return w.controlled
}

func (w *Window) Focus(ctx context.Context) error {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	if w.focusErr != nil {
		return w.focusErr
	}
	w.owner.focusLocked(w)
	return nil
}

func (w *Window) Navigate(ctx context.Context, rawURL string) error {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	w.url = w.owner.resolve(rawURL)
	return nil
}

func (w *Window) PostMessage(ctx context.Context, msg interface{}) error {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	w.inbox = append(w.inbox, msg)
	return nil
}

// Inbox returns messages posted to the window.
func (w *Window) Inbox() []interface{} {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()
	return append([]interface{}(nil), w.inbox...)
}

// FailFocus makes Focus return err.
func (w *Window) FailFocus(err error) {
	w.owner.mu.Lock()
	w.focusErr = err
	w.owner.mu.Unlock()
}
