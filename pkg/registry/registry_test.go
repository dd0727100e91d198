package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "precache.json")
	m := &Manifest{Version: "3"}
	require.NoError(t, m.Add(Asset{Path: "/manifest.json", Kind: KindManifest}))
	require.NoError(t, m.Add(Asset{Path: "/icons/icon-192x192.png", Kind: KindIcon}))
	require.NoError(t, m.Add(Asset{Path: "/admin", Kind: KindRoute}))
	require.NoError(t, SaveManifest(m, path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/manifest.json", "/icons/icon-192x192.png", "/admin"}, loaded.Paths())
	assert.NoError(t, loaded.Validate())
}

func TestManifest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		assets []Asset
	}{
		{name: "empty"},
		{name: "relative path", assets: []Asset{{Path: "icons/a.png", Kind: KindIcon}}},
		{name: "unknown kind", assets: []Asset{{Path: "/a.png", Kind: "font"}}},
		{name: "duplicate", assets: []Asset{{Path: "/admin", Kind: KindRoute}, {Path: "/admin", Kind: KindRoute}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Assets: tt.assets}
			assert.Error(t, m.Validate())
		})
	}
}

func TestManifest_AddRemove(t *testing.T) {
	m := &Manifest{}
	require.NoError(t, m.Add(Asset{Path: "/admin", Kind: KindRoute}))
	assert.Error(t, m.Add(Asset{Path: "/admin", Kind: KindRoute}))

	assert.True(t, m.Remove("/admin"))
	assert.False(t, m.Remove("/admin"))
	assert.Empty(t, m.Paths())
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
