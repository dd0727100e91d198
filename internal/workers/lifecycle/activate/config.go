// internal/workers/lifecycle/activate/config.go
package activate

import "time"

type Config struct {
	CacheName string
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
