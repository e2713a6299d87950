package rules

import "fmt"

// ActionType is what a matching rule decides for the request.
type ActionType string

const (
	// ActionAllow grants the request.
	ActionAllow ActionType = "allow"
	// ActionDeny rejects the request.
	ActionDeny ActionType = "deny"
	// ActionRequirePermission grants the request only when the user
	// holds the rule's required permission; otherwise evaluation falls
	// through to later rules.
	ActionRequirePermission ActionType = "require_permission"
)

// Rule is a prioritized predicate-action pair governing lock admission.
// Rules are immutable once admitted; replacement is remove-then-add.
type Rule struct {
	ID          string     `yaml:"id" json:"id"`
	Priority    int        `yaml:"priority" json:"priority"` // lower evaluates first
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Condition   Condition  `yaml:"condition" json:"condition"`
	Action      ActionType `yaml:"action" json:"action"`

	// RequiredPermission is consulted only when Action is
	// ActionRequirePermission.
	RequiredPermission string `yaml:"required_permission,omitempty" json:"required_permission,omitempty"`

	// Shareable marks matching paths as supporting multiple concurrent
	// holders when this rule grants the request.
	Shareable bool `yaml:"shareable,omitempty" json:"shareable,omitempty"`

	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Request is the tuple a rule condition is evaluated against.
type Request struct {
	Path     string            `json:"path"`
	User     string            `json:"user"`
	Action   string            `json:"action"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Decision is the outcome of evaluating a request against the rule set.
// A deny always carries a reason.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	RuleID    string `json:"rule_id,omitempty"` // empty when no rule matched
	Shareable bool   `json:"shareable,omitempty"`
}

// DefaultDenyReason is returned when no rule matches a request.
const DefaultDenyReason = "no applicable rule"

// TraceStep records how a single rule was handled during evaluation.
type TraceStep struct {
	RuleID   string `json:"rule_id"`
	Priority int    `json:"priority"`
	Matched  bool   `json:"matched"`
	Outcome  string `json:"outcome"`
}

func (s TraceStep) String() string {
	return fmt.Sprintf("%s (priority %d): %s", s.RuleID, s.Priority, s.Outcome)
}
