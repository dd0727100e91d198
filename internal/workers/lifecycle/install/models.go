// internal/workers/lifecycle/install/models.go
package install

type Output struct {
	CacheName string   `json:"cacheName"`
	Cached    []string `json:"cached"`
	Failed    []string `json:"failed,omitempty"`
}
