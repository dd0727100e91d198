// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var knownKinds = map[string]bool{
	KindIcon:     true,
	KindManifest: true,
	KindRoute:    true,
	KindScript:   true,
	KindStyle:    true,
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// SaveManifest writes m as indented JSON, creating the directory when needed.
func SaveManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// Paths returns the asset paths in manifest order.
func (m *Manifest) Paths() []string {
	out := make([]string, 0, len(m.Assets))
	for _, a := range m.Assets {
		out = append(out, a.Path)
	}
	return out
}

// Add appends an asset, rejecting duplicates.
func (m *Manifest) Add(a Asset) error {
	if err := validateAsset(a); err != nil {
		return err
	}
	for _, existing := range m.Assets {
		if existing.Path == a.Path {
			return fmt.Errorf("asset %s already exists", a.Path)
		}
	}
	m.Assets = append(m.Assets, a)
	return nil
}

// Remove drops the asset with path and reports whether it was present.
func (m *Manifest) Remove(path string) bool {
	for i, a := range m.Assets {
		if a.Path == path {
			m.Assets = append(m.Assets[:i], m.Assets[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manifest) Validate() error {
	if len(m.Assets) == 0 {
		return fmt.Errorf("manifest contains no assets")
	}
	seen := make(map[string]bool, len(m.Assets))
	for _, a := range m.Assets {
		if err := validateAsset(a); err != nil {
			return err
		}
		if seen[a.Path] {
			return fmt.Errorf("duplicate asset path: %s", a.Path)
		}
		seen[a.Path] = true
	}
	return nil
}

func validateAsset(a Asset) error {
	if !strings.HasPrefix(a.Path, "/") {
		return fmt.Errorf("asset path %q must be origin-relative", a.Path)
	}
	if !knownKinds[a.Kind] {
		return fmt.Errorf("asset %s has unknown kind %q", a.Path, a.Kind)
	}
	return nil
}
