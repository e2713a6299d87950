// Package rules implements the prioritized rule engine that decides
// whether a lock request is allowed.
//
// # Overview
//
// A Rule pairs a condition predicate over (path, user, action, metadata)
// with an action: Allow, Deny, or RequirePermission. Enabled rules are
// evaluated in ascending priority order (ties broken by rule ID) and the
// first terminal match decides. A RequirePermission rule whose predicate
// matches but whose permission the user lacks is not terminal: evaluation
// continues to later rules. When nothing matches, the engine denies with
// reason "no applicable rule".
//
// # Rule Sources
//
// The engine merges two rule lists: static rules registered through the
// administrative API, and contributed rules owned by the plugin registry.
// Both are replaced atomically, never mutated in place.
//
// # Usage Example
//
//	engine := rules.NewEngine(permStore)
//	err := engine.Add(rules.Rule{
//		ID:                 "secrets-admin",
//		Priority:           1,
//		Condition:          rules.Condition{PathPrefix: "/secrets"},
//		Action:             rules.ActionRequirePermission,
//		RequiredPermission: "admin",
//		Enabled:            true,
//	})
//	decision := engine.Evaluate(rules.Request{Path: "/secrets/x", User: "bob", Action: "write"})
//
// # Related Packages
//
//   - pkg/cache: memoizes Evaluate outcomes per rule-set generation
//   - pkg/plugins: contributes additional rules
//   - pkg/validation: gates rule admission
package rules
