package swruntime

import (
	"context"
	"net/http"

	"storefront-push/internal/models"
	"storefront-push/internal/platform"
	"storefront-push/pkg/notification"
)

// EventKind names a worker event.
type EventKind string

const (
	EventInstall                EventKind = "install"
	EventActivate               EventKind = "activate"
	EventFetch                  EventKind = "fetch"
	EventPush                   EventKind = "push"
	EventNotificationClick      EventKind = "notificationclick"
	EventPushSubscriptionChange EventKind = "pushsubscriptionchange"
	EventMessage                EventKind = "message"
)

// functional events are only delivered to an activated worker.
func (k EventKind) functional() bool {
	switch k {
	case EventFetch, EventPush, EventNotificationClick, EventPushSubscriptionChange:
		return true
	}
	return false
}

type Event interface {
	Kind() EventKind
}

// WaitUntil is the work a handler asks the runtime to keep the worker alive for.
// A nil WaitUntil means the handler finished synchronously.
type WaitUntil func(ctx context.Context) error

// RespondWith produces the response for an intercepted request.
type RespondWith func(ctx context.Context) (*http.Response, error)

type Handler interface {
	Handle(ctx context.Context, ev Event) WaitUntil
}

// FetchHandler intercepts requests. Returning nil lets the request go to the network
// untouched.
type FetchHandler interface {
	HandleFetch(ctx context.Context, ev *FetchEvent) RespondWith
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) WaitUntil

func (f HandlerFunc) Handle(ctx context.Context, ev Event) WaitUntil { return f(ctx, ev) }

type InstallEvent struct{}

func (InstallEvent) Kind() EventKind { return EventInstall }

type ActivateEvent struct{}

func (ActivateEvent) Kind() EventKind { return EventActivate }

type FetchEvent struct {
	Request  *http.Request
	ClientID string
}

func (*FetchEvent) Kind() EventKind { return EventFetch }

// PushEvent carries the decrypted push message body.
type PushEvent struct {
	Data []byte
}

func (PushEvent) Kind() EventKind { return EventPush }

type NotificationClickEvent struct {
	NotificationID string
	Title          string
	Action         string
	Data           notification.Data
}

func (NotificationClickEvent) Kind() EventKind { return EventNotificationClick }

// PushSubscriptionChangeEvent reports a subscription invalidated by the push service.
// NewSubscription is set only when the platform already re-subscribed.
type PushSubscriptionChangeEvent struct {
	OldSubscription *models.PushSubscription
	NewSubscription *models.PushSubscription
}

func (PushSubscriptionChangeEvent) Kind() EventKind { return EventPushSubscriptionChange }

// Message is a postMessage payload from a page.
type Message struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// MessageEvent is a message from a page. Source may be nil when the sender is not a
// window of the origin; Reply answers on the sender's message port.
type MessageEvent struct {
	Message Message
	Source  platform.WindowClient
	Reply   func(ctx context.Context, msg interface{}) error
}

func (MessageEvent) Kind() EventKind { return EventMessage }
