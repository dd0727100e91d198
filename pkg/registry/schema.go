// pkg/registry/schema.go
package registry

// Manifest is the precache list the install handler populates the asset cache from.
type Manifest struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Assets      []Asset `json:"assets"`
}

// Asset kinds.
const (
	KindIcon     = "icon"
	KindManifest = "manifest"
	KindRoute    = "route"
	KindScript   = "script"
	KindStyle    = "style"
)

type Asset struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}
