package plugins

import (
	"fmt"
	"io"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/validation"
)

// Validator gates plugin admission. Nothing enters the registry before
// its manifest, declared capabilities, and contributed rules pass.
type Validator struct {
	rules  *validation.Validator
	logger *logrus.Logger
}

// NewValidator creates a new plugin validator
func NewValidator(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Validator{
		rules:  validation.NewValidator(),
		logger: logger,
	}
}

// ValidateManifest validates a plugin manifest for correctness
func (v *Validator) ValidateManifest(manifest *Manifest) validation.Result {
	var result validation.Result

	if manifest == nil {
		return validation.Result{{
			Field:    "manifest",
			Message:  "Manifest is required",
			Severity: validation.SeverityError,
		}}
	}

	// Required fields
	if manifest.ID == "" {
		result = append(result, validation.ValidationError{
			Field:    "id",
			Message:  "Plugin ID is required",
			Severity: validation.SeverityError,
		})
	} else if !isValidPluginID(manifest.ID) {
		result = append(result, validation.ValidationError{
			Field:    "id",
			Message:  "Plugin ID must be lowercase alphanumeric with hyphens (e.g., 'release-freeze')",
			Severity: validation.SeverityError,
		})
	}

	if manifest.Name == "" {
		result = append(result, validation.ValidationError{
			Field:    "name",
			Message:  "Plugin name is required",
			Severity: validation.SeverityError,
		})
	}

	if manifest.Version == "" {
		result = append(result, validation.ValidationError{
			Field:    "version",
			Message:  "Version is required",
			Severity: validation.SeverityError,
		})
	} else if !isValidSemver(manifest.Version) {
		result = append(result, validation.ValidationError{
			Field:    "version",
			Message:  "Version must be valid semantic version (e.g., '1.0.0')",
			Severity: validation.SeverityError,
		})
	}

	if manifest.APIVersion == "" {
		result = append(result, validation.ValidationError{
			Field:    "api_version",
			Message:  "API version is required",
			Severity: validation.SeverityError,
		})
	} else if !isValidSemver(manifest.APIVersion) {
		result = append(result, validation.ValidationError{
			Field:    "api_version",
			Message:  "API version must be valid semantic version (e.g., '1.0.0')",
			Severity: validation.SeverityError,
		})
	} else if !IsCompatibleAPIVersion(manifest.APIVersion, APIVersion) {
		result = append(result, validation.ValidationError{
			Field:    "api_version",
			Message:  fmt.Sprintf("Incompatible API version: plugin requires %s, host is %s", manifest.APIVersion, APIVersion),
			Severity: validation.SeverityError,
		})
	}

	if manifest.Author == "" {
		result = append(result, validation.ValidationError{
			Field:    "author",
			Message:  "Author is required",
			Severity: validation.SeverityWarning,
		})
	}

	// Validate declared capabilities
	if len(manifest.Capabilities) == 0 {
		result = append(result, validation.ValidationError{
			Field:    "capabilities",
			Message:  "Plugin declares no capabilities",
			Severity: validation.SeverityWarning,
		})
	}
	seen := make(map[Capability]bool, len(manifest.Capabilities))
	for _, c := range manifest.Capabilities {
		if !knownCapabilities[c] {
			result = append(result, validation.ValidationError{
				Field:    "capabilities",
				Message:  fmt.Sprintf("Unknown capability: %s", c),
				Severity: validation.SeverityError,
			})
		}
		if seen[c] {
			result = append(result, validation.ValidationError{
				Field:    "capabilities",
				Message:  fmt.Sprintf("Duplicate capability: %s", c),
				Severity: validation.SeverityWarning,
			})
		}
		seen[c] = true
	}

	if manifest.Homepage != "" && !isValidURL(manifest.Homepage) {
		result = append(result, validation.ValidationError{
			Field:    "homepage",
			Message:  "Homepage URL appears invalid",
			Severity: validation.SeverityWarning,
		})
	}

	return result
}

// Validate runs the full admission check on a plugin: manifest
// correctness, agreement between declared and implemented
// capabilities, and the content of any contributed rules.
func (v *Validator) Validate(plugin Plugin) validation.Result {
	if plugin == nil {
		return validation.Result{{
			Field:    "plugin",
			Message:  "Plugin is required",
			Severity: validation.SeverityError,
		}}
	}

	manifest := plugin.Manifest()
	result := v.ValidateManifest(manifest)
	if manifest == nil {
		return result
	}

	result = append(result, v.checkCapabilities(plugin, manifest)...)

	if provider, ok := plugin.(RulesProvider); ok {
		result = append(result, v.rules.ValidateRuleSet(provider.Rules())...)
	}

	if errs := result.Errors(); len(errs) > 0 {
		v.logger.WithField("plugin", manifest.ID).
			Warnf("Plugin failed validation with %d error(s)", len(errs))
	}
	return result
}

// checkCapabilities cross-checks manifest declarations against the
// interfaces the plugin actually implements. Claiming an unimplemented
// capability is an error; implementing an undeclared one is a warning.
func (v *Validator) checkCapabilities(plugin Plugin, manifest *Manifest) validation.Result {
	var result validation.Result

	implemented := make(map[Capability]bool)
	for _, c := range CapabilitiesOf(plugin) {
		implemented[c] = true
	}
	declared := make(map[Capability]bool)
	for _, c := range manifest.Capabilities {
		declared[c] = true
	}

	for _, c := range []Capability{CapabilityRules, CapabilityRuleValidation} {
		switch {
		case declared[c] && !implemented[c]:
			result = append(result, validation.ValidationError{
				Field:    "capabilities",
				Message:  fmt.Sprintf("Declared capability %q is not implemented", c),
				Severity: validation.SeverityError,
			})
		case implemented[c] && !declared[c]:
			result = append(result, validation.ValidationError{
				Field:    "capabilities",
				Message:  fmt.Sprintf("Plugin implements %q but does not declare it", c),
				Severity: validation.SeverityWarning,
			})
		}
	}

	return result
}

// Helper functions

func isValidPluginID(id string) bool {
	// Plugin IDs must be lowercase alphanumeric with hyphens
	matched, _ := regexp.MatchString(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`, id)
	return matched
}

func isValidURL(url string) bool {
	matched, _ := regexp.MatchString(`^https?://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, url)
	return matched
}
