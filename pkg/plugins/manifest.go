package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// APIVersion is the plugin API version this host implements. Plugins
// built against a different major version are rejected.
const APIVersion = "1.0.0"

// ManifestFileName is the manifest file a plugin directory must carry.
const ManifestFileName = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest reads and parses a plugin manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir reads the plugin.yaml inside a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFileName))
}

// SaveManifest writes a manifest as YAML. Plugin authors use this from
// their build tooling; the host itself only loads.
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// IsCompatibleAPIVersion reports whether a plugin built against
// pluginAPIVersion can run on a host at hostAPIVersion. Only major
// versions must agree: a 1.2.x plugin runs on a 1.0.x host. Versions
// that do not parse are compatible with nothing.
func IsCompatibleAPIVersion(pluginAPIVersion, hostAPIVersion string) bool {
	pluginMajor, ok := majorVersion(pluginAPIVersion)
	if !ok {
		return false
	}
	hostMajor, ok := majorVersion(hostAPIVersion)
	if !ok {
		return false
	}
	return pluginMajor == hostMajor
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

func majorVersion(version string) (string, bool) {
	matches := semverRegex.FindStringSubmatch(version)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}
