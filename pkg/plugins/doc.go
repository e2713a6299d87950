// Package plugins provides an extensibility framework for lock policy.
//
// # Overview
//
// This package manages plugin validation, registration, and discovery
// for extending the engine's rule set and rule admission checks
// without touching its core.
//
// # Plugin System
//
// Plugin Interface: Base interface all plugins implement (Manifest, Load, Unload)
// Registry: In-memory registry owning plugin instances
// Loader: Discovers rule-pack plugins in filesystem directories
// Validator: Validates manifests and capability declarations
//
// # Capabilities
//
// RulesProvider: contributes rules to the evaluation order
//
//	type RulesProvider interface {
//		Plugin
//		Rules() []rules.Rule
//	}
//
// RuleValidator: adds checks to rule admission
//
//	type RuleValidator interface {
//		Plugin
//		ValidateRule(rule rules.Rule) []validation.ValidationError
//	}
//
// A manifest declares its capabilities; the registry verifies each
// declaration against the implemented interfaces at registration and
// rejects plugins that claim what they cannot do.
//
// # Usage Example
//
// Register a rule pack:
//
//	registry := plugins.NewRegistry(plugins.NewValidator(logger), logger)
//
//	pack := plugins.NewStaticPlugin(&plugins.Manifest{
//		ID:           "release-freeze",
//		Name:         "Release Freeze",
//		Version:      "1.0.0",
//		APIVersion:   "1.0.0",
//		Capabilities: []plugins.Capability{plugins.CapabilityRules},
//	}, freezeRules)
//
//	if err := registry.Register(pack); err != nil {
//		log.Fatal(err)
//	}
//
// Feed contributed rules to the engine:
//
//	engine.ReplaceContributed(registry.Rules())
//
// # Related Packages
//
//   - pkg/rules: evaluates contributed rules
//   - pkg/validation: the finding shape validators return
//   - pkg/engine: drives registration and rule replacement
package plugins
