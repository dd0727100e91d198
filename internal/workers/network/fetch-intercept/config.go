// internal/workers/network/fetch-intercept/config.go
package fetchintercept

import "time"

type Config struct {
	Origin      string
	CacheName   string
	AdminPrefix string
	APIPrefix   string
	// ShellPath is the cached admin page served when neither network nor cache has
	// the requested page.
	ShellPath string
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		AdminPrefix: "/admin",
		APIPrefix:   "/api/",
		ShellPath:   "/admin",
		Timeout:     10 * time.Second,
	}
}
