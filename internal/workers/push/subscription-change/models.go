// internal/workers/push/subscription-change/models.go
package subscriptionchange

import "storefront-push/internal/models"

type Input struct {
	OldSubscription *models.PushSubscription
	NewSubscription *models.PushSubscription
}

type Output struct {
	OldEndpoint string `json:"oldEndpoint,omitempty"`
	NewEndpoint string `json:"newEndpoint"`
	KeySource   string `json:"keySource"`
}

// Key sources
const (
	KeyFromOldSubscription = "old_subscription"
	KeyFromConfig          = "config"
	KeyFromPlatform        = "platform"
)
