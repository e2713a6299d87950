// Package validation performs structural checks on rules and permission
// updates before they are admitted into a running engine. Validation is
// pure: it never mutates state, so callers can run it and swap in the
// validated input atomically.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// Severity levels for validation findings.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError describes a single finding. Findings with severity
// error block admission; warnings do not.
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Severity, e.Field, e.Message)
}

// Result is the ordered list of findings from one validation pass.
type Result []ValidationError

// Valid reports whether the result contains no error-severity findings.
func (r Result) Valid() bool {
	for _, f := range r {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the error-severity findings.
func (r Result) Errors() Result {
	var out Result
	for _, f := range r {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns only the warning-severity findings.
func (r Result) Warnings() Result {
	var out Result
	for _, f := range r {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// Messages renders every finding as "severity: field: message".
func (r Result) Messages() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.String()
	}
	return out
}

// Validator checks rules and permission updates.
type Validator struct{}

// NewValidator returns a validator with default checks.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRule checks a single rule in isolation.
func (v *Validator) ValidateRule(rule rules.Rule) Result {
	var result Result

	if rule.ID == "" {
		result = append(result, ValidationError{
			Field:    "id",
			Message:  "Rule ID is required",
			Severity: SeverityError,
		})
	} else if !isValidRuleID(rule.ID) {
		result = append(result, ValidationError{
			Field:    "id",
			Message:  "Rule ID should be lowercase alphanumeric with hyphens (e.g. 'deny-secrets')",
			Severity: SeverityWarning,
		})
	}

	if rule.Condition.Empty() {
		result = append(result, ValidationError{
			Field:    "condition",
			Message:  "Condition must set at least one predicate field",
			Severity: SeverityError,
		})
	} else if _, err := rule.Condition.Compile(); err != nil {
		result = append(result, ValidationError{
			Field:    "condition",
			Message:  fmt.Sprintf("Condition does not compile: %v", err),
			Severity: SeverityError,
		})
	}

	switch rule.Action {
	case rules.ActionAllow, rules.ActionDeny:
		if rule.RequiredPermission != "" {
			result = append(result, ValidationError{
				Field:    "required_permission",
				Message:  fmt.Sprintf("required_permission has no effect for action %q", rule.Action),
				Severity: SeverityWarning,
			})
		}
	case rules.ActionRequirePermission:
		if rule.RequiredPermission == "" {
			result = append(result, ValidationError{
				Field:    "required_permission",
				Message:  fmt.Sprintf("required_permission must be set for action %q", rules.ActionRequirePermission),
				Severity: SeverityError,
			})
		}
	default:
		result = append(result, ValidationError{
			Field:    "action",
			Message:  fmt.Sprintf("Unknown rule action: %q", rule.Action),
			Severity: SeverityError,
		})
	}

	if rule.Action == rules.ActionDeny && rule.Shareable {
		result = append(result, ValidationError{
			Field:    "shareable",
			Message:  "shareable has no effect on deny rules",
			Severity: SeverityWarning,
		})
	}

	return result
}

// ValidateNewRule checks a rule that is about to join an existing set.
// exists reports whether a rule ID is already registered.
func (v *Validator) ValidateNewRule(rule rules.Rule, exists func(id string) bool) Result {
	result := v.ValidateRule(rule)

	if rule.ID != "" && exists != nil && exists(rule.ID) {
		result = append(result, ValidationError{
			Field:    "id",
			Message:  fmt.Sprintf("Rule ID already registered: %s", rule.ID),
			Severity: SeverityError,
		})
	}

	return result
}

// ValidateRuleSet checks a batch of rules together, including duplicate
// IDs within the batch. Findings are prefixed with the rule's position
// so a bundle author can locate the offending entry.
func (v *Validator) ValidateRuleSet(set []rules.Rule) Result {
	var result Result
	seen := make(map[string]int, len(set))

	for i, rule := range set {
		prefix := fmt.Sprintf("rules[%d]", i)
		for _, f := range v.ValidateRule(rule) {
			f.Field = prefix + "." + f.Field
			result = append(result, f)
		}

		if rule.ID == "" {
			continue
		}
		if first, ok := seen[rule.ID]; ok {
			result = append(result, ValidationError{
				Field:    prefix + ".id",
				Message:  fmt.Sprintf("Duplicate rule ID %q (first used by rules[%d])", rule.ID, first),
				Severity: SeverityError,
			})
			continue
		}
		seen[rule.ID] = i
	}

	return result
}

// ValidatePermissionUpdate checks a permission replacement request.
// Permission strings are opaque, so only emptiness and obvious
// formatting mistakes are flagged.
func (v *Validator) ValidatePermissionUpdate(user string, perms []string) Result {
	var result Result

	if user == "" {
		result = append(result, ValidationError{
			Field:    "user",
			Message:  "User is required",
			Severity: SeverityError,
		})
	}

	for i, p := range perms {
		field := fmt.Sprintf("permissions[%d]", i)
		if p == "" {
			result = append(result, ValidationError{
				Field:    field,
				Message:  "Permission must not be empty",
				Severity: SeverityError,
			})
			continue
		}
		if strings.TrimSpace(p) != p {
			result = append(result, ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("Permission %q has leading or trailing whitespace", p),
				Severity: SeverityWarning,
			})
		}
	}

	return result
}

func isValidRuleID(id string) bool {
	ruleIDRegex := regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	return ruleIDRegex.MatchString(id)
}
