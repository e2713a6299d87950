package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// StaticPlugin is a file- or literal-backed rule pack. It is the
// implementation behind directory-discovered plugins and the usual
// vehicle for embedding a fixed rule set in tests and tools.
type StaticPlugin struct {
	manifest  *Manifest
	pluginDir string
	ruleSet   []rules.Rule
}

// NewStaticPlugin creates a rule pack from a manifest and a literal
// rule set.
func NewStaticPlugin(manifest *Manifest, ruleSet []rules.Rule) *StaticPlugin {
	return &StaticPlugin{
		manifest: manifest,
		ruleSet:  append([]rules.Rule(nil), ruleSet...),
	}
}

// NewStaticPluginFromDir creates a rule pack whose rules load from
// rules.yaml in the plugin directory at Load time.
func NewStaticPluginFromDir(manifest *Manifest, pluginDir string) *StaticPlugin {
	return &StaticPlugin{
		manifest:  manifest,
		pluginDir: pluginDir,
	}
}

// Manifest returns the plugin manifest
func (p *StaticPlugin) Manifest() *Manifest {
	return p.manifest
}

// Load initializes the plugin
func (p *StaticPlugin) Load() error {
	if p.pluginDir == "" {
		return nil
	}
	if err := p.loadRules(); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	return nil
}

// Unload cleans up plugin resources
func (p *StaticPlugin) Unload() error {
	// No resources to clean up for a static rule pack
	return nil
}

// Rules returns the contributed rule set.
func (p *StaticPlugin) Rules() []rules.Rule {
	return append([]rules.Rule(nil), p.ruleSet...)
}

// loadRules reads the rule set from rules.yaml in the plugin directory.
// A pack without a rules file contributes nothing.
func (p *StaticPlugin) loadRules() error {
	path := filepath.Join(p.pluginDir, RulesFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.ruleSet = nil
			return nil
		}
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var ruleSet []rules.Rule
	if err := yaml.Unmarshal(data, &ruleSet); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	p.ruleSet = ruleSet
	return nil
}
