// Package platform declares the browser capabilities the background worker and the
// subscription manager depend on.
package platform

import (
	"context"
	"errors"
	"net/http"

	"storefront-push/internal/models"
	"storefront-push/pkg/notification"
)

var (
	ErrInvalidState   = errors.New("invalid state")
	ErrNotFound       = errors.New("not found")
	ErrNotAllowed     = errors.New("not allowed")
	ErrPushService    = errors.New("push service unavailable")
	ErrWindowNotFocus = errors.New("window could not be focused")
)

// Capabilities reports what the runtime supports.
type Capabilities struct {
	ServiceWorker bool
	Push          bool
	Notifications bool
}

// Permissions is the notification permission surface.
type Permissions interface {
	State() models.PermissionState
	// Request shows the permission prompt once and returns the resulting state.
	Request(ctx context.Context) (models.PermissionState, error)
}

type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey string
}

// PushManager talks to the push service on behalf of one registration.
type PushManager interface {
	Subscribe(ctx context.Context, opts SubscribeOptions) (*models.PushSubscription, error)
	// GetSubscription returns nil when there is no subscription.
	GetSubscription(ctx context.Context) (*models.PushSubscription, error)
	// Unsubscribe reports false when endpoint was not subscribed.
	Unsubscribe(ctx context.Context, endpoint string) (bool, error)
}

// ShownNotification is a notification currently visible to the user.
type ShownNotification struct {
	ID      string
	Title   string
	Options notification.Options
}

type Notifier interface {
	Show(ctx context.Context, title string, opts notification.Options) (string, error)
	Close(ctx context.Context, id string) error
	Visible(ctx context.Context, tag string) ([]ShownNotification, error)
}

// Cache is one named cache generation.
type Cache interface {
	Put(ctx context.Context, url string, asset models.CachedAsset) error
	Match(ctx context.Context, url string) (*models.CachedAsset, error)
	Keys(ctx context.Context) ([]string, error)
}

type CacheStorage interface {
	Open(ctx context.Context, name string) (Cache, error)
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// WindowClient is an open page of the origin.
type WindowClient interface {
	ID() string
	URL() string
	Focused() bool
	Controlled() bool
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	PostMessage(ctx context.Context, msg interface{}) error
}

type MatchOptions struct {
	IncludeUncontrolled bool
}

type Clients interface {
	MatchAll(ctx context.Context, opts MatchOptions) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) (WindowClient, error)
	// Claim makes the active worker the controller of every open window.
	Claim(ctx context.Context) error
}

// Fetcher performs network requests on behalf of the worker.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registration is the worker registration for the origin.
type Registration interface {
	Active() bool
	State() string
	PushManager() PushManager
	Notifier() Notifier
}

// RegistrationProvider resolves the origin's registration; nil means none exists.
type RegistrationProvider interface {
	Registration(ctx context.Context) (Registration, error)
}
