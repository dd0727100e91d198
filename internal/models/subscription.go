// internal/models/subscription.go
package models

import "time"

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionDefault PermissionState = "default"
)

// SubscriptionKeys are the encryption keys the push service uses for payloads.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the serialized form handed to the push server.
type PushSubscription struct {
	Endpoint       string           `json:"endpoint"`
	ExpirationTime *int64           `json:"expirationTime"`
	Keys           SubscriptionKeys `json:"keys"`

	// ApplicationServerKey is the VAPID public key the subscription was created with.
	// It stays on the device and is never serialized.
	ApplicationServerKey string `json:"-"`
}

// StoredSubscription is one persisted row on the push server.
type StoredSubscription struct {
	OwnerID   string    `json:"ownerId"`
	UserType  string    `json:"userType"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}

type SubscribeRequest struct {
	UserID       string           `json:"userId"`
	UserType     string           `json:"userType,omitempty"`
	Subscription PushSubscription `json:"subscription"`
}

type UnsubscribeRequest struct {
	UserID   string `json:"userId"`
	Endpoint string `json:"endpoint"`
}

type RotateRequest struct {
	OldEndpoint  string           `json:"oldEndpoint"`
	Subscription PushSubscription `json:"subscription"`
}

// SubscriptionStatus is the combined permission and subscription state.
type SubscriptionStatus struct {
	Supported  bool            `json:"supported"`
	Permission PermissionState `json:"permission"`
	Subscribed bool            `json:"subscribed"`
	Endpoint   string          `json:"endpoint,omitempty"`
}

// CachedAsset is a response stored in the versioned asset cache.
type CachedAsset struct {
	URL        string              `json:"url"`
	StatusCode int                 `json:"statusCode"`
	Header     map[string][]string `json:"header"`
	Body       []byte              `json:"body"`
	StoredAt   time.Time           `json:"storedAt"`
}
