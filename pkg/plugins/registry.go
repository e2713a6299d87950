package plugins

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/observability"
	"github.com/platinummonkey/snaplock/pkg/rules"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// Registry owns plugin instances for the process lifetime. Admission
// is validate-then-load-then-store; a plugin that fails any step never
// becomes visible. The registry is the single source of
// plugin-contributed rules.
type Registry struct {
	validator *Validator
	log       *logrus.Logger

	mu         sync.RWMutex
	plugins    map[string]Plugin
	order      []string // registration order, drives Rules() determinism
	registered map[string]time.Time
}

// NewRegistry creates an empty plugin registry. A nil validator gets a
// default one; a nil logger discards output.
func NewRegistry(validator *Validator, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	if validator == nil {
		validator = NewValidator(log)
	}
	return &Registry{
		validator:  validator,
		log:        log,
		plugins:    make(map[string]Plugin),
		registered: make(map[string]time.Time),
	}
}

// Register validates, loads, and admits a plugin. Contributed rule IDs
// must not collide with another registered plugin's. Replacing a
// plugin is Unregister followed by Register.
func (r *Registry) Register(plugin Plugin) error {
	if plugin == nil {
		return ErrNilPlugin
	}
	manifest := plugin.Manifest()
	if manifest == nil {
		return fmt.Errorf("%w: nil manifest", ErrNilPlugin)
	}

	if result := r.validator.Validate(plugin); !result.Valid() {
		return &InvalidPluginError{PluginID: manifest.ID, Issues: result}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[manifest.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, manifest.ID)
	}

	if issues := r.contributedCollisionsLocked(plugin); len(issues) > 0 {
		return &InvalidPluginError{PluginID: manifest.ID, Issues: issues}
	}

	if err := callPlugin(plugin.Load); err != nil {
		return fmt.Errorf("plugin load failed: %w", err)
	}

	r.plugins[manifest.ID] = plugin
	r.order = append(r.order, manifest.ID)
	r.registered[manifest.ID] = time.Now().UTC()

	r.log.Infof("Registered plugin: %s v%s", manifest.ID, manifest.Version)
	return nil
}

// Unregister unloads and removes a plugin. An unload failure keeps the
// plugin registered so its rules stay consistent with its state.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugin, exists := r.plugins[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}

	if err := callPlugin(plugin.Unload); err != nil {
		return fmt.Errorf("failed to unload plugin: %w", err)
	}

	delete(r.plugins, id)
	delete(r.registered, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.log.Infof("Unregistered plugin: %s", id)
	return nil
}

// Get retrieves a plugin by ID
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, exists := r.plugins[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return plugin, nil
}

// Has checks if a plugin is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.plugins[id]
	return exists
}

// Info returns runtime information about a registered plugin.
func (r *Registry) Info(id string) (*PluginInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, exists := r.plugins[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return &PluginInfo{
		Manifest:     plugin.Manifest(),
		RegisteredAt: r.registered[id],
		Capabilities: CapabilitiesOf(plugin),
	}, nil
}

// List returns all registered plugins in registration order
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.plugins[id])
	}
	return result
}

// ListByCapability returns the plugins implementing a capability, in
// registration order.
func (r *Registry) ListByCapability(c Capability) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Plugin
	for _, id := range r.order {
		plugin := r.plugins[id]
		for _, implemented := range CapabilitiesOf(plugin) {
			if implemented == c {
				result = append(result, plugin)
				break
			}
		}
	}
	return result
}

// Count returns the number of registered plugins
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

// Rules aggregates every registered provider's contributed rules in
// registration order. The caller swaps the result into the engine
// wholesale.
func (r *Registry) Rules() []rules.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []rules.Rule
	for _, id := range r.order {
		if provider, ok := r.plugins[id].(RulesProvider); ok {
			result = append(result, provider.Rules()...)
		}
	}
	return result
}

// RuleValidators returns the registered rule validators in
// registration order.
func (r *Registry) RuleValidators() []RuleValidator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []RuleValidator
	for _, id := range r.order {
		if rv, ok := r.plugins[id].(RuleValidator); ok {
			result = append(result, rv)
		}
	}
	return result
}

// Clear unloads and removes all plugins. Unload failures are logged
// and do not stop the reset.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, plugin := range r.plugins {
		if err := callPlugin(plugin.Unload); err != nil {
			r.log.Warnf("Failed to unload plugin %s: %v", id, err)
		}
	}
	r.plugins = make(map[string]Plugin)
	r.registered = make(map[string]time.Time)
	r.order = nil
}

// callPlugin runs a plugin hook with a panic guard so misbehaving
// plugin code surfaces as an error instead of crashing the process.
func callPlugin(fn func() error) (err error) {
	defer func() {
		if rerr := observability.MustRecover(recover()); rerr != nil {
			err = rerr
		}
	}()
	return fn()
}

// contributedCollisionsLocked reports rule IDs the candidate shares
// with already registered providers. Callers hold mu.
func (r *Registry) contributedCollisionsLocked(candidate Plugin) validation.Result {
	provider, ok := candidate.(RulesProvider)
	if !ok {
		return nil
	}

	taken := make(map[string]string) // rule ID -> plugin ID
	for _, id := range r.order {
		if existing, ok := r.plugins[id].(RulesProvider); ok {
			for _, rule := range existing.Rules() {
				taken[rule.ID] = id
			}
		}
	}

	var result validation.Result
	for i, rule := range provider.Rules() {
		if owner, exists := taken[rule.ID]; exists {
			result = append(result, validation.ValidationError{
				Field:    fmt.Sprintf("rules[%d].id", i),
				Message:  fmt.Sprintf("Rule ID %q already contributed by plugin %q", rule.ID, owner),
				Severity: validation.SeverityError,
			})
		}
	}
	return result
}
