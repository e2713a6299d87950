package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/platinummonkey/snaplock/pkg/errdefs"
	"github.com/platinummonkey/snaplock/pkg/events"
	"github.com/platinummonkey/snaplock/pkg/permissions"
	"github.com/platinummonkey/snaplock/pkg/plugins"
	"github.com/platinummonkey/snaplock/pkg/rules"
)

// RegisterRule validates a rule and adds it to the active set. The
// rule is checked by the structural validator and every registered
// rule-validator plugin before it is admitted; a rejected rule leaves
// the active set unchanged.
func (e *Engine) RegisterRule(ctx context.Context, def rules.Rule) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.admitRule(ctx, def); err != nil {
		return err
	}
	e.publish(events.NewRuleRegistered(def.ID, def.Priority))
	return nil
}

func (e *Engine) admitRule(ctx context.Context, def rules.Rule) error {
	e.admin.Lock()
	defer e.admin.Unlock()

	result := e.validator.ValidateNewRule(def, e.rules.Has)
	for _, rv := range e.registry.RuleValidators() {
		result = append(result, rv.ValidateRule(def)...)
	}
	if !result.Valid() {
		return invalidInput("rule definition rejected", result).WithDetail("rule_id", def.ID)
	}

	if err := e.rules.Add(def); err != nil {
		// The rule engine repeats the compile and duplicate checks;
		// anything it still rejects is surfaced, not swallowed.
		return errdefs.Validation(err.Error()).WithCause(err).WithDetail("rule_id", def.ID)
	}

	gen := e.bumpGeneration(ctx)
	e.syncPolicyMetrics()
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"rule_id":    def.ID,
		"priority":   def.Priority,
		"generation": gen,
	}).Info("rule registered")
	return nil
}

// RemoveRule drops a directly registered rule from the active set.
// Plugin-contributed rules are owned by their plugin and cannot be
// removed here.
func (e *Engine) RemoveRule(ctx context.Context, id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return errdefs.Validation("rule ID is required").WithDetail("field", "rule_id")
	}
	if err := e.dropRule(ctx, id); err != nil {
		return err
	}
	e.publish(events.NewRuleRemoved(id))
	return nil
}

func (e *Engine) dropRule(ctx context.Context, id string) error {
	e.admin.Lock()
	defer e.admin.Unlock()

	if err := e.rules.Remove(id); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			if e.rules.Has(id) {
				return errdefs.Conflictf("rule %s is plugin-contributed; unregister the plugin instead", id).
					WithDetail("rule_id", id)
			}
			return errdefs.NotFoundf("rule %s not found", id).WithCause(err).WithDetail("rule_id", id)
		}
		return errdefs.Internal("rule removal failed", err)
	}

	gen := e.bumpGeneration(ctx)
	e.syncPolicyMetrics()
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"rule_id":    id,
		"generation": gen,
	}).Info("rule removed")
	return nil
}

// RegisterPlugin validates and admits a plugin, then swaps its
// contributed rules into the rule engine. Admission and rule swap
// succeed or fail together: a contributed rule that collides with a
// static rule rolls the plugin back out of the registry.
func (e *Engine) RegisterPlugin(ctx context.Context, plugin plugins.Plugin) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	manifest, err := e.admitPlugin(ctx, plugin)
	if err != nil {
		return err
	}
	e.publish(events.NewPluginRegistered(manifest.ID, manifest.Version))
	return nil
}

func (e *Engine) admitPlugin(ctx context.Context, plugin plugins.Plugin) (*plugins.Manifest, error) {
	e.admin.Lock()
	defer e.admin.Unlock()

	if err := e.registry.Register(plugin); err != nil {
		return nil, pluginAdmissionError(err)
	}
	manifest := plugin.Manifest()

	if err := e.rules.ReplaceContributed(e.registry.Rules()); err != nil {
		if uerr := e.registry.Unregister(manifest.ID); uerr != nil {
			e.ctxLogger(ctx).WithError(uerr).WithField("plugin_id", manifest.ID).
				Error("failed plugin registration did not roll back cleanly")
		}
		return nil, errdefs.Validation(err.Error()).WithCause(err).WithDetail("plugin_id", manifest.ID)
	}

	gen := e.bumpGeneration(ctx)
	e.syncPolicyMetrics()
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"plugin_id":  manifest.ID,
		"version":    manifest.Version,
		"generation": gen,
	}).Info("plugin registered")
	return manifest, nil
}

// UnregisterPlugin unloads a plugin and withdraws its contributed
// rules from the active set.
func (e *Engine) UnregisterPlugin(ctx context.Context, id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return errdefs.Validation("plugin ID is required").WithDetail("field", "plugin_id")
	}
	if err := e.removePlugin(ctx, id); err != nil {
		return err
	}
	e.publish(events.NewPluginUnregistered(id))
	return nil
}

func (e *Engine) removePlugin(ctx context.Context, id string) error {
	e.admin.Lock()
	defer e.admin.Unlock()

	if err := e.registry.Unregister(id); err != nil {
		if errors.Is(err, plugins.ErrPluginNotFound) {
			return errdefs.NotFoundf("plugin %s not found", id).WithCause(err).WithDetail("plugin_id", id)
		}
		return errdefs.Internal("plugin unload failed", err)
	}

	if err := e.rules.ReplaceContributed(e.registry.Rules()); err != nil {
		// The remaining contributions were valid before this removal,
		// so a rebuild failure is an invariant violation.
		e.ctxLogger(ctx).WithError(err).WithField("plugin_id", id).
			Error("contributed rule set rebuild failed after plugin removal")
		return errdefs.Internal("contributed rule set rebuild failed", err)
	}

	gen := e.bumpGeneration(ctx)
	e.syncPolicyMetrics()
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"plugin_id":  id,
		"generation": gen,
	}).Info("plugin unregistered")
	return nil
}

// ApplyPolicy replaces the directly registered rule set and all user
// permissions wholesale, as one declarative update. The incoming
// policy is validated in full before anything is swapped; on any error
// the active policy is unchanged. Plugin-contributed rules are not
// touched. On success the generation advances once and events are
// published only for the rules and users that actually changed; an
// apply that changes nothing leaves the generation, and therefore any
// cached decisions, alone.
func (e *Engine) ApplyPolicy(ctx context.Context, defs []rules.Rule, perms map[string][]string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	diff, err := e.swapPolicy(ctx, defs, perms)
	if err != nil {
		return err
	}
	for _, def := range diff.rulesUpserted {
		e.publish(events.NewRuleRegistered(def.ID, def.Priority))
	}
	for _, id := range diff.rulesRemoved {
		e.publish(events.NewRuleRemoved(id))
	}
	for _, pc := range diff.permsReplaced {
		e.publish(events.NewPermissionsUpdated(pc.user, pc.count))
	}
	return nil
}

type policyDiff struct {
	rulesUpserted []rules.Rule
	rulesRemoved  []string
	permsReplaced []permChange
}

type permChange struct {
	user  string
	count int
}

func (e *Engine) swapPolicy(ctx context.Context, defs []rules.Rule, perms map[string][]string) (policyDiff, error) {
	e.admin.Lock()
	defer e.admin.Unlock()

	var diff policyDiff

	result := e.validator.ValidateRuleSet(defs)
	ruleValidators := e.registry.RuleValidators()
	for i, def := range defs {
		for _, rv := range ruleValidators {
			for _, f := range rv.ValidateRule(def) {
				f.Field = fmt.Sprintf("rules[%d].%s", i, f.Field)
				result = append(result, f)
			}
		}
	}
	users := make([]string, 0, len(perms))
	for user := range perms {
		users = append(users, user)
	}
	sort.Strings(users)
	for _, user := range users {
		for _, f := range e.validator.ValidatePermissionUpdate(user, perms[user]) {
			f.Field = fmt.Sprintf("permissions[%s].%s", user, f.Field)
			result = append(result, f)
		}
	}
	if !result.Valid() {
		return diff, invalidInput("policy rejected", result)
	}

	before := e.rules.StaticList()

	if err := e.rules.ReplaceStatic(defs); err != nil {
		// The rule engine repeats the compile and duplicate checks and
		// adds the collision check against contributed rules.
		return diff, errdefs.Validation(err.Error()).WithCause(err)
	}

	oldByID := make(map[string]rules.Rule, len(before))
	for _, r := range before {
		oldByID[r.ID] = r
	}
	for _, def := range defs {
		old, ok := oldByID[def.ID]
		if !ok || !reflect.DeepEqual(old, def) {
			diff.rulesUpserted = append(diff.rulesUpserted, def)
		}
		delete(oldByID, def.ID)
	}
	for id := range oldByID {
		diff.rulesRemoved = append(diff.rulesRemoved, id)
	}
	sort.Strings(diff.rulesRemoved)

	for _, user := range e.perms.Users() {
		if _, ok := perms[user]; !ok {
			e.perms.Remove(user)
			diff.permsReplaced = append(diff.permsReplaced, permChange{user: user})
		}
	}
	for _, user := range users {
		next := permissions.NewSet(perms[user]...)
		if reflect.DeepEqual(e.perms.Get(user), next) {
			continue
		}
		e.perms.Replace(user, next)
		diff.permsReplaced = append(diff.permsReplaced, permChange{user: user, count: len(next)})
	}

	if len(diff.rulesUpserted) == 0 && len(diff.rulesRemoved) == 0 && len(diff.permsReplaced) == 0 {
		e.ctxLogger(ctx).Debug("policy applied with no changes")
		return diff, nil
	}

	gen := e.bumpGeneration(ctx)
	e.syncPolicyMetrics()
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"rules":      len(defs),
		"users":      len(perms),
		"generation": gen,
	}).Info("policy applied")
	return diff, nil
}

// SetPermissions replaces a user's permission set wholesale. An empty
// set removes the user. Cached decisions made under the previous set
// are invalidated by the generation bump.
func (e *Engine) SetPermissions(ctx context.Context, user string, perms []string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.replacePermissions(ctx, user, perms); err != nil {
		return err
	}
	e.publish(events.NewPermissionsUpdated(user, len(perms)))
	return nil
}

func (e *Engine) replacePermissions(ctx context.Context, user string, perms []string) error {
	e.admin.Lock()
	defer e.admin.Unlock()

	if result := e.validator.ValidatePermissionUpdate(user, perms); !result.Valid() {
		return invalidInput("permission update rejected", result).WithDetail("user", user)
	}

	e.perms.Replace(user, permissions.NewSet(perms...))

	gen := e.bumpGeneration(ctx)
	e.ctxLogger(ctx).WithFields(map[string]interface{}{
		"user":        user,
		"permissions": len(perms),
		"generation":  gen,
	}).Info("permissions updated")
	return nil
}
