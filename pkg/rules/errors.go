package rules

import "errors"

var (
	// ErrDuplicateRuleID is returned when a rule is added with an ID
	// that is already registered.
	ErrDuplicateRuleID = errors.New("rule ID already registered")

	// ErrRuleNotFound is returned when a rule lookup or removal
	// references an unknown ID.
	ErrRuleNotFound = errors.New("rule not found")
)
