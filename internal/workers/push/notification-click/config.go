// internal/workers/push/notification-click/config.go
package notificationclick

import "time"

type Config struct {
	Origin      string
	AdminPrefix string
	DefaultURL  string
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		AdminPrefix: "/admin",
		DefaultURL:  "/admin",
		Timeout:     10 * time.Second,
	}
}
