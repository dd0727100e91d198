// internal/workers/push/subscription-change/config.go
package subscriptionchange

import "time"

type Config struct {
	// ApplicationServerKey is the VAPID public key used when the expired subscription
	// does not carry one.
	ApplicationServerKey string
	Timeout              time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
