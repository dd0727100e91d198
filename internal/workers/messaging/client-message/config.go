// internal/workers/messaging/client-message/config.go
package clientmessage

import "time"

type Config struct {
	Version string
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
