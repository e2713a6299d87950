// Package validation provides semantic validation for rules and permission updates.
//
// # Overview
//
// This package checks rule definitions and permission grants before they reach
// the policy engine, reporting every problem at once instead of failing on the
// first. Findings carry a severity so callers can treat warnings as advisory.
//
// # Validation Checks
//
// Rules:
//   - Rule ID format (lowercase alphanumeric with hyphens)
//   - Action must be allow or deny
//   - Condition must constrain at least one dimension
//   - Path pattern syntax
//   - Duplicate IDs within a rule set
//
// Permissions:
//   - User name present
//   - Known permission identifiers
//
// # Usage Example
//
// Validate a single rule:
//
//	validator := validation.NewValidator()
//	result := validator.ValidateRule(rule)
//	if !result.Valid() {
//		for _, msg := range result.Errors().Messages() {
//			fmt.Println(msg)
//		}
//	}
//
// Validate a whole rule set, including cross-rule duplicate detection:
//
//	result := validator.ValidateRuleSet(pack.Rules)
//
// # Related Packages
//
//   - pkg/rules: Rule types and the evaluation engine
//   - pkg/plugins: Validates contributed rule sets at registration
package validation
