package rules

import (
	"fmt"
	"sort"
	"sync"
)

// PermissionSource answers permission checks during evaluation.
// *permissions.Store satisfies it.
type PermissionSource interface {
	Has(user, permission string) bool
}

type compiledRule struct {
	rule Rule
	cond *CompiledCondition
}

// Engine holds the active rule set and evaluates requests against it.
//
// Rules come from two sources: rules registered directly via Add, and
// rules contributed by plugins via ReplaceContributed. Both sources
// share one ID namespace. Evaluation reads an immutable sorted
// snapshot, so in-flight evaluations never observe a partial update.
type Engine struct {
	mu          sync.RWMutex
	static      map[string]compiledRule
	contributed map[string]compiledRule
	snapshot    []compiledRule

	perms PermissionSource
}

// NewEngine returns an empty engine. perms is consulted for
// require_permission rules; it must not be nil.
func NewEngine(perms PermissionSource) *Engine {
	return &Engine{
		static:      make(map[string]compiledRule),
		contributed: make(map[string]compiledRule),
		perms:       perms,
	}
}

// Add registers a rule. The rule ID must be unique across both static
// and contributed rules. The condition is compiled here; a rule that
// does not compile is rejected and the active set is unchanged.
func (e *Engine) Add(rule Rule) error {
	cr, err := compile(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.static[rule.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRuleID, rule.ID)
	}
	if _, ok := e.contributed[rule.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRuleID, rule.ID)
	}

	e.static[rule.ID] = cr
	e.rebuildLocked()
	return nil
}

// Remove drops a directly registered rule. Contributed rules are not
// removable here; they are replaced wholesale by ReplaceContributed.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.static[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(e.static, id)
	e.rebuildLocked()
	return nil
}

// ReplaceContributed swaps the full set of plugin-contributed rules.
// Every incoming rule is compiled and checked for ID collisions before
// the swap; on any error the previous contributed set stays active.
func (e *Engine) ReplaceContributed(rules []Rule) error {
	next := make(map[string]compiledRule, len(rules))
	for _, r := range rules {
		if _, ok := next[r.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, r.ID)
		}
		cr, err := compile(r)
		if err != nil {
			return err
		}
		next[r.ID] = cr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range next {
		if _, ok := e.static[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, id)
		}
	}

	e.contributed = next
	e.rebuildLocked()
	return nil
}

// ReplaceStatic swaps the full set of directly registered rules, for
// declarative reloads. Every incoming rule is compiled and checked for
// ID collisions, within the batch and against contributed rules, before
// the swap; on any error the previous static set stays active.
func (e *Engine) ReplaceStatic(rules []Rule) error {
	next := make(map[string]compiledRule, len(rules))
	for _, r := range rules {
		if _, ok := next[r.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, r.ID)
		}
		cr, err := compile(r)
		if err != nil {
			return err
		}
		next[r.ID] = cr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range next {
		if _, ok := e.contributed[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, id)
		}
	}

	e.static = next
	e.rebuildLocked()
	return nil
}

// Get returns a rule by ID.
func (e *Engine) Get(id string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if cr, ok := e.static[id]; ok {
		return cr.rule, true
	}
	if cr, ok := e.contributed[id]; ok {
		return cr.rule, true
	}
	return Rule{}, false
}

// Has reports whether a rule with the given ID is registered.
func (e *Engine) Has(id string) bool {
	_, ok := e.Get(id)
	return ok
}

// List returns all rules in evaluation order.
func (e *Engine) List() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, len(e.snapshot))
	for i, cr := range e.snapshot {
		out[i] = cr.rule
	}
	return out
}

// StaticList returns the directly registered rules in evaluation
// order, excluding plugin contributions.
func (e *Engine) StaticList() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, 0, len(e.static))
	for _, cr := range e.snapshot {
		if _, ok := e.static[cr.rule.ID]; ok {
			out = append(out, cr.rule)
		}
	}
	return out
}

// IDs returns all rule IDs in evaluation order.
func (e *Engine) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, len(e.snapshot))
	for i, cr := range e.snapshot {
		out[i] = cr.rule.ID
	}
	return out
}

// Count returns the number of registered rules across both sources.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.snapshot)
}

// Evaluate runs the request through the active rule set and returns
// the decision. Rules are visited in ascending priority order, ties
// broken by ID; the first terminal rule wins. An unmet
// require_permission rule is not terminal: evaluation continues, and
// if nothing later decides, the denial reason names the missing
// permission. With no applicable rule at all the request is denied.
func (e *Engine) Evaluate(req Request) Decision {
	d, _ := e.evaluate(req, false)
	return d
}

// EvaluateTrace is Evaluate plus a step-by-step record of every rule
// visited, for explain tooling.
func (e *Engine) EvaluateTrace(req Request) (Decision, []TraceStep) {
	return e.evaluate(req, true)
}

func (e *Engine) evaluate(req Request, trace bool) (Decision, []TraceStep) {
	e.mu.RLock()
	snapshot := e.snapshot
	e.mu.RUnlock()

	var steps []TraceStep
	step := func(r Rule, matched bool, outcome string) {
		if trace {
			steps = append(steps, TraceStep{
				RuleID:   r.ID,
				Priority: r.Priority,
				Matched:  matched,
				Outcome:  outcome,
			})
		}
	}

	// First matched-but-unmet require_permission rule, if any. If no
	// later rule decides, the denial names this permission.
	var unmet *Rule

	for i := range snapshot {
		cr := &snapshot[i]
		r := cr.rule

		if !r.Enabled {
			step(r, false, "skipped (disabled)")
			continue
		}
		if !cr.cond.Matches(req) {
			step(r, false, "not matched")
			continue
		}

		switch r.Action {
		case ActionAllow:
			step(r, true, "allow")
			return Decision{
				Allowed:   true,
				Reason:    reasonFor("allowed", r),
				RuleID:    r.ID,
				Shareable: r.Shareable,
			}, steps

		case ActionDeny:
			step(r, true, "deny")
			return Decision{
				Allowed: false,
				Reason:  reasonFor("denied", r),
				RuleID:  r.ID,
			}, steps

		case ActionRequirePermission:
			if e.perms.Has(req.User, r.RequiredPermission) {
				step(r, true, "require_permission satisfied")
				return Decision{
					Allowed:   true,
					Reason:    reasonFor("allowed", r),
					RuleID:    r.ID,
					Shareable: r.Shareable,
				}, steps
			}
			step(r, true, "require_permission unmet, continuing")
			if unmet == nil {
				ruleCopy := r
				unmet = &ruleCopy
			}
		}
	}

	if unmet != nil {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("permission %q required by rule %s", unmet.RequiredPermission, unmet.ID),
			RuleID:  unmet.ID,
		}, steps
	}

	return Decision{
		Allowed: false,
		Reason:  DefaultDenyReason,
	}, steps
}

func compile(r Rule) (compiledRule, error) {
	if r.ID == "" {
		return compiledRule{}, fmt.Errorf("rule ID is required")
	}

	switch r.Action {
	case ActionAllow, ActionDeny:
	case ActionRequirePermission:
		if r.RequiredPermission == "" {
			return compiledRule{}, fmt.Errorf("rule %s: required_permission must be set for %s", r.ID, ActionRequirePermission)
		}
	default:
		return compiledRule{}, fmt.Errorf("rule %s: unknown action %q", r.ID, r.Action)
	}

	cond, err := r.Condition.Compile()
	if err != nil {
		return compiledRule{}, fmt.Errorf("rule %s: %w", r.ID, err)
	}

	return compiledRule{rule: r, cond: cond}, nil
}

func reasonFor(verb string, r Rule) string {
	if r.Description != "" {
		return fmt.Sprintf("%s by rule %s: %s", verb, r.ID, r.Description)
	}
	return fmt.Sprintf("%s by rule %s", verb, r.ID)
}

// rebuildLocked recomputes the evaluation snapshot. Callers hold mu.
func (e *Engine) rebuildLocked() {
	next := make([]compiledRule, 0, len(e.static)+len(e.contributed))
	for _, cr := range e.static {
		next = append(next, cr)
	}
	for _, cr := range e.contributed {
		next = append(next, cr)
	}
	sort.Slice(next, func(i, j int) bool {
		if next[i].rule.Priority != next[j].rule.Priority {
			return next[i].rule.Priority < next[j].rule.Priority
		}
		return next[i].rule.ID < next[j].rule.ID
	})
	e.snapshot = next
}
