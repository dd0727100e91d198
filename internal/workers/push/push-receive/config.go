// internal/workers/push/push-receive/config.go
package pushreceive

import (
	"time"

	"storefront-push/pkg/notification"
)

type Config struct {
	Defaults notification.Defaults
	Display  notification.Display
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Defaults: notification.Defaults{
			Title: "Notification",
			Body:  "New notification",
			URL:   "/admin",
		},
		Display: notification.Display{
			Vibrate:            []int{200, 100, 200},
			RequireInteraction: true,
			Renotify:           true,
		},
		Timeout: 30 * time.Second,
	}
}
