package plugins

// Tests for manifest.go covering:
// - YAML load/save round trips
// - Directory-based manifest discovery
// - API version compatibility

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	data := `
id: release-freeze
name: Release Freeze
version: 1.2.0
api_version: 1.0.0
description: Denies writes during release windows
author: platform team
capabilities:
  - rules
config:
  window: weekly
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "release-freeze", m.ID)
	assert.Equal(t, "Release Freeze", m.Name)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, []Capability{CapabilityRules}, m.Capabilities)
	assert.Equal(t, "weekly", m.Config["window"])
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestLoadManifest_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: [unterminated"), 0644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse manifest")
}

func TestSaveManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.yaml")

	original := validManifest("round-trip", CapabilityRules, CapabilityRuleValidation)
	original.Config = map[string]string{"mode": "strict"}

	require.NoError(t, SaveManifest(original, path))

	loaded, err := LoadManifestFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestIsCompatibleAPIVersion(t *testing.T) {
	tests := []struct {
		plugin string
		host   string
		want   bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.4.2", "1.0.0", true},
		{"v1.0.0", "1.0.0", true},
		{"2.0.0", "1.0.0", false},
		{"0.9.0", "1.0.0", false},
		{"garbage", "1.0.0", false},
		{"garbage", "garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.plugin+"_vs_"+tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatibleAPIVersion(tt.plugin, tt.host))
		})
	}
}
