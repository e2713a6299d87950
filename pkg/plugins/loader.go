package plugins

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// RulesFileName is the rule set file a rule-pack plugin directory may
// carry alongside its manifest.
const RulesFileName = "rules.yaml"

// Loader discovers rule-pack plugins in filesystem directories. Each
// plugin is a subdirectory carrying a plugin.yaml manifest and,
// optionally, a rules.yaml rule set.
type Loader struct {
	pluginDirs []string
	log        *logrus.Logger
}

// NewLoader creates a new plugin loader
func NewLoader(dirs []string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Loader{
		pluginDirs: dirs,
		log:        log,
	}
}

// Discover scans the plugin directories and returns the plugins found.
// Unloadable entries are logged and skipped; the registry validates
// and admits whatever comes back.
func (l *Loader) Discover(ctx context.Context) ([]Plugin, error) {
	var found []Plugin

	for _, dir := range l.pluginDirs {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pluginDir := filepath.Join(dir, entry.Name())
			plugin, err := l.LoadFromDir(pluginDir)
			if err != nil {
				l.log.Warnf("Failed to load plugin from %s: %v", pluginDir, err)
				continue
			}

			found = append(found, plugin)
		}
	}

	return found, nil
}

// LoadFromDir builds a rule-pack plugin from a single directory. The
// manifest must parse and target a compatible API version; full
// validation happens at registration.
func (l *Loader) LoadFromDir(dir string) (Plugin, error) {
	manifest, err := LoadManifestFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	if !IsCompatibleAPIVersion(manifest.APIVersion, APIVersion) {
		return nil, fmt.Errorf("incompatible API version: plugin requires %s, host is %s",
			manifest.APIVersion, APIVersion)
	}

	l.log.Debugf("Discovered plugin %s v%s in %s", manifest.ID, manifest.Version, dir)
	return NewStaticPluginFromDir(manifest, dir), nil
}
