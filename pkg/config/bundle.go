package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/snaplock/pkg/rules"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// BundleVersion is the bundle schema version this host understands.
const BundleVersion = 1

// Bundle is the declarative policy document the agent and the CLI
// load: the static rule set, user permissions, and the rule-pack
// plugins to activate. A bundle is applied wholesale; it is the
// complete policy, not a delta.
type Bundle struct {
	// Version is the bundle schema version. Zero means current.
	Version int `yaml:"version,omitempty"`

	// Rules is the static rule set.
	Rules []rules.Rule `yaml:"rules,omitempty"`

	// Permissions maps a user to the permission names they hold.
	Permissions map[string][]string `yaml:"permissions,omitempty"`

	// Plugins selects the rule-pack plugins to discover and activate.
	Plugins PluginSelection `yaml:"plugins,omitempty"`
}

// PluginSelection controls rule-pack plugin activation.
type PluginSelection struct {
	// Dirs are scanned for plugin directories. Relative paths are
	// resolved by the caller, usually against the bundle's directory.
	Dirs []string `yaml:"dirs,omitempty"`

	// Enabled restricts activation to the listed plugin IDs. Empty
	// activates every discovered plugin.
	Enabled []string `yaml:"enabled,omitempty"`

	// Disabled skips the listed plugin IDs. Disabled wins over Enabled.
	Disabled []string `yaml:"disabled,omitempty"`
}

// LoadBundle reads and parses a bundle file. The content is not
// validated here; call Verify or Validate on the result.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var bundle Bundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}

	return &bundle, nil
}

// Verify runs the structural validation a running engine would apply
// on Bundle content, without touching one: rule set checks including
// duplicate IDs, permission checks, and plugin selection checks.
// Findings carry positional fields so a bundle author can locate each
// problem.
func (b *Bundle) Verify() validation.Result {
	v := validation.NewValidator()

	var result validation.Result
	if b.Version != 0 && b.Version != BundleVersion {
		result = append(result, validation.ValidationError{
			Field:    "version",
			Message:  fmt.Sprintf("Unsupported bundle version %d (this host understands %d)", b.Version, BundleVersion),
			Severity: validation.SeverityError,
		})
	}

	if len(b.Rules) == 0 && len(b.Plugins.Dirs) == 0 {
		result = append(result, validation.ValidationError{
			Field:    "rules",
			Message:  "Bundle defines no rules and no plugin directories; every request will be denied",
			Severity: validation.SeverityWarning,
		})
	}

	result = append(result, v.ValidateRuleSet(b.Rules)...)

	users := make([]string, 0, len(b.Permissions))
	for user := range b.Permissions {
		users = append(users, user)
	}
	sort.Strings(users)
	for _, user := range users {
		for _, f := range v.ValidatePermissionUpdate(user, b.Permissions[user]) {
			f.Field = fmt.Sprintf("permissions[%s].%s", user, f.Field)
			result = append(result, f)
		}
	}

	result = append(result, b.Plugins.verify()...)

	return result
}

// Validate returns the first blocking finding as an error, or nil when
// the bundle is admissible. Warnings do not block.
func (b *Bundle) Validate() error {
	if errs := b.Verify().Errors(); len(errs) > 0 {
		return fmt.Errorf("invalid bundle: %s", errs[0].String())
	}
	return nil
}

func (s PluginSelection) verify() validation.Result {
	var result validation.Result

	for i, dir := range s.Dirs {
		if dir == "" {
			result = append(result, validation.ValidationError{
				Field:    fmt.Sprintf("plugins.dirs[%d]", i),
				Message:  "Plugin directory must not be empty",
				Severity: validation.SeverityError,
			})
		}
	}

	checkIDs := func(field string, ids []string) {
		for i, id := range ids {
			if id == "" {
				result = append(result, validation.ValidationError{
					Field:    fmt.Sprintf("plugins.%s[%d]", field, i),
					Message:  "Plugin ID must not be empty",
					Severity: validation.SeverityError,
				})
			}
		}
	}
	checkIDs("enabled", s.Enabled)
	checkIDs("disabled", s.Disabled)

	disabled := make(map[string]struct{}, len(s.Disabled))
	for _, id := range s.Disabled {
		disabled[id] = struct{}{}
	}
	for i, id := range s.Enabled {
		if _, ok := disabled[id]; ok && id != "" {
			result = append(result, validation.ValidationError{
				Field:    fmt.Sprintf("plugins.enabled[%d]", i),
				Message:  fmt.Sprintf("Plugin %q is listed in both enabled and disabled; disabled wins", id),
				Severity: validation.SeverityWarning,
			})
		}
	}

	return result
}

// ResolvePluginDirs resolves the selection's plugin directories
// against the bundle file's directory, so a bundle can ship its rule
// packs beside itself. Absolute entries pass through unchanged.
func ResolvePluginDirs(bundlePath string, dirs []string) []string {
	base := filepath.Dir(bundlePath)
	resolved := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if filepath.IsAbs(dir) {
			resolved = append(resolved, dir)
			continue
		}
		resolved = append(resolved, filepath.Join(base, dir))
	}
	return resolved
}

// Activates reports whether the selection activates the plugin ID.
// Disabled wins over Enabled; an empty Enabled list activates every
// discovered plugin.
func (s PluginSelection) Activates(id string) bool {
	for _, d := range s.Disabled {
		if d == id {
			return false
		}
	}
	if len(s.Enabled) == 0 {
		return true
	}
	for _, e := range s.Enabled {
		if e == id {
			return true
		}
	}
	return false
}
