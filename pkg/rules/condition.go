package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition is the typed predicate of a rule. Set fields are
// AND-combined; a condition with no fields set is rejected at
// validation time rather than silently matching everything.
type Condition struct {
	// PathPrefix matches when the request path starts with the prefix.
	PathPrefix string `yaml:"path_prefix,omitempty" json:"path_prefix,omitempty"`

	// PathPattern is a regular expression matched against the full path.
	PathPattern string `yaml:"path_pattern,omitempty" json:"path_pattern,omitempty"`

	// Users restricts the condition to the listed users.
	Users []string `yaml:"users,omitempty" json:"users,omitempty"`

	// Actions restricts the condition to the listed actions.
	Actions []string `yaml:"actions,omitempty" json:"actions,omitempty"`

	// MetadataEquals requires every listed key to be present in the
	// request metadata with exactly the listed value.
	MetadataEquals map[string]string `yaml:"metadata_equals,omitempty" json:"metadata_equals,omitempty"`
}

// Empty reports whether no predicate field is set.
func (c Condition) Empty() bool {
	return c.PathPrefix == "" &&
		c.PathPattern == "" &&
		len(c.Users) == 0 &&
		len(c.Actions) == 0 &&
		len(c.MetadataEquals) == 0
}

// Compile converts the condition into its evaluated form, compiling the
// path pattern and building membership sets. Compile is called once at
// admission; evaluation never compiles.
func (c Condition) Compile() (*CompiledCondition, error) {
	if c.Empty() {
		return nil, fmt.Errorf("condition has no predicate fields")
	}

	cc := &CompiledCondition{src: c}

	if c.PathPattern != "" {
		pattern, err := regexp.Compile(c.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", c.PathPattern, err)
		}
		cc.pattern = pattern
	}

	if len(c.Users) > 0 {
		cc.users = make(map[string]struct{}, len(c.Users))
		for _, u := range c.Users {
			cc.users[u] = struct{}{}
		}
	}

	if len(c.Actions) > 0 {
		cc.actions = make(map[string]struct{}, len(c.Actions))
		for _, a := range c.Actions {
			cc.actions[a] = struct{}{}
		}
	}

	return cc, nil
}

// CompiledCondition is the evaluation-ready form of a Condition.
type CompiledCondition struct {
	src     Condition
	pattern *regexp.Regexp
	users   map[string]struct{}
	actions map[string]struct{}
}

// Matches reports whether the request satisfies every set predicate.
func (cc *CompiledCondition) Matches(req Request) bool {
	if cc.src.PathPrefix != "" && !strings.HasPrefix(req.Path, cc.src.PathPrefix) {
		return false
	}

	if cc.pattern != nil && !cc.pattern.MatchString(req.Path) {
		return false
	}

	if cc.users != nil {
		if _, ok := cc.users[req.User]; !ok {
			return false
		}
	}

	if cc.actions != nil {
		if _, ok := cc.actions[req.Action]; !ok {
			return false
		}
	}

	for key, want := range cc.src.MetadataEquals {
		if req.Metadata[key] != want {
			return false
		}
	}

	return true
}
