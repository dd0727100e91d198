// internal/workers/lifecycle/install/config.go
package install

import "time"

type Config struct {
	CacheName string
	Origin    string
	Assets    []string
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
