package plugins

import (
	"time"

	"github.com/platinummonkey/snaplock/pkg/rules"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// Plugin is the base interface all plugins must implement
type Plugin interface {
	Manifest() *Manifest
	Load() error
	Unload() error
}

// Manifest describes plugin metadata
type Manifest struct {
	ID           string            `yaml:"id"`           // Unique ID (e.g., "release-freeze")
	Name         string            `yaml:"name"`         // Display name
	Version      string            `yaml:"version"`      // Semver
	APIVersion   string            `yaml:"api_version"`  // Host API version
	Description  string            `yaml:"description"`  // Short description
	Author       string            `yaml:"author"`       // Author name
	Homepage     string            `yaml:"homepage"`     // Homepage URL
	Capabilities []Capability      `yaml:"capabilities"` // Declared capabilities
	Config       map[string]string `yaml:"config"`       // Plugin-specific settings
}

// Capability names an optional behavior a plugin declares in its
// manifest. Declarations are checked against the implemented
// interfaces at registration.
type Capability string

const (
	// CapabilityRules marks plugins that contribute rules to the
	// engine's evaluation order (the RulesProvider interface).
	CapabilityRules Capability = "rules"

	// CapabilityRuleValidation marks plugins that add checks to rule
	// admission (the RuleValidator interface).
	CapabilityRuleValidation Capability = "rule-validation"
)

// RulesProvider is implemented by plugins that contribute rules.
// Contributed rules are evaluated alongside statically registered ones
// and are replaced wholesale when the plugin set changes.
type RulesProvider interface {
	Plugin
	Rules() []rules.Rule
}

// RuleValidator is implemented by plugins that veto rule admission.
// Returned errors and warnings are merged into the admission result.
type RuleValidator interface {
	Plugin
	ValidateRule(rule rules.Rule) []validation.ValidationError
}

// PluginInfo contains runtime information about a registered plugin
type PluginInfo struct {
	Manifest     *Manifest
	RegisteredAt time.Time
	Capabilities []Capability // capabilities actually implemented
}

// CapabilitiesOf returns the capabilities a plugin implements,
// determined by type assertion rather than manifest declaration.
func CapabilitiesOf(p Plugin) []Capability {
	var caps []Capability
	if _, ok := p.(RulesProvider); ok {
		caps = append(caps, CapabilityRules)
	}
	if _, ok := p.(RuleValidator); ok {
		caps = append(caps, CapabilityRuleValidation)
	}
	return caps
}

// knownCapabilities is consulted by manifest validation.
var knownCapabilities = map[Capability]bool{
	CapabilityRules:          true,
	CapabilityRuleValidation: true,
}
