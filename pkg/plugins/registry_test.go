package plugins

// Tests for registry.go covering:
// - Registration lifecycle (validate, load, admit)
// - Rejection paths (nil, duplicate, invalid, load failure or panic)
// - Capability declaration enforcement
// - Contributed rule aggregation and collision detection
// - Unregistration and Clear

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/snaplock/pkg/rules"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// mockPlugin implements the base Plugin interface and counts
// lifecycle calls.
type mockPlugin struct {
	manifest  *Manifest
	loadErr   error
	unloadErr error
	loads     int
	unloads   int
}

func (p *mockPlugin) Manifest() *Manifest { return p.manifest }

func (p *mockPlugin) Load() error {
	p.loads++
	return p.loadErr
}

func (p *mockPlugin) Unload() error {
	p.unloads++
	return p.unloadErr
}

// panickyPlugin panics in Load to exercise the registry's hook guard.
type panickyPlugin struct {
	mockPlugin
}

func (p *panickyPlugin) Load() error { panic("bad init") }

// mockRulesPlugin adds the RulesProvider capability.
type mockRulesPlugin struct {
	mockPlugin
	contributed []rules.Rule
}

func (p *mockRulesPlugin) Rules() []rules.Rule { return p.contributed }

// mockRuleValidatorPlugin adds the RuleValidator capability.
type mockRuleValidatorPlugin struct {
	mockPlugin
	findings []validation.ValidationError
}

func (p *mockRuleValidatorPlugin) ValidateRule(rule rules.Rule) []validation.ValidationError {
	return p.findings
}

func validManifest(id string, caps ...Capability) *Manifest {
	return &Manifest{
		ID:           id,
		Name:         "Test Plugin",
		Version:      "1.0.0",
		APIVersion:   "1.0.0",
		Author:       "tester",
		Capabilities: caps,
	}
}

func packRule(id string, priority int) rules.Rule {
	return rules.Rule{
		ID:        id,
		Priority:  priority,
		Condition: rules.Condition{PathPrefix: "/data/"},
		Action:    rules.ActionAllow,
		Enabled:   true,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, nil)
}

func TestRegistry_Register(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &mockPlugin{manifest: validManifest("audit-hooks")}
	require.NoError(t, registry.Register(plugin))

	assert.Equal(t, 1, plugin.loads)
	assert.True(t, registry.Has("audit-hooks"))
	assert.Equal(t, 1, registry.Count())

	got, err := registry.Get("audit-hooks")
	require.NoError(t, err)
	assert.Same(t, plugin, got)

	info, err := registry.Info("audit-hooks")
	require.NoError(t, err)
	assert.Equal(t, "audit-hooks", info.Manifest.ID)
	assert.False(t, info.RegisteredAt.IsZero())
	assert.Empty(t, info.Capabilities)
}

func TestRegistry_Register_NilPlugin(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Register(nil)
	assert.ErrorIs(t, err, ErrNilPlugin)

	err = registry.Register(&mockPlugin{})
	assert.ErrorIs(t, err, ErrNilPlugin)
}

func TestRegistry_Register_InvalidManifest(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &mockPlugin{manifest: validManifest("Bad ID With Spaces")}
	err := registry.Register(plugin)

	var inv *InvalidPluginError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "Bad ID With Spaces", inv.PluginID)
	assert.NotEmpty(t, inv.Issues.Errors())

	assert.Equal(t, 0, plugin.loads, "invalid plugins must not be loaded")
	assert.Equal(t, 0, registry.Count())
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Register(&mockPlugin{manifest: validManifest("twice")}))

	err := registry.Register(&mockPlugin{manifest: validManifest("twice")})
	assert.ErrorIs(t, err, ErrDuplicatePlugin)
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Register_LoadFailure(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &mockPlugin{
		manifest: validManifest("broken"),
		loadErr:  fmt.Errorf("missing dependency"),
	}
	err := registry.Register(plugin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin load failed")
	assert.False(t, registry.Has("broken"))
}

func TestRegistry_Register_LoadPanic(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &panickyPlugin{mockPlugin{manifest: validManifest("explosive")}}
	err := registry.Register(plugin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin load failed")
	assert.Contains(t, err.Error(), "bad init")
	assert.False(t, registry.Has("explosive"))
}

func TestRegistry_Register_UndeliveredCapability(t *testing.T) {
	registry := newTestRegistry(t)

	// Declares the rules capability but implements only the base
	// interface.
	plugin := &mockPlugin{manifest: validManifest("liar", CapabilityRules)}
	err := registry.Register(plugin)

	var inv *InvalidPluginError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Error(), "not implemented")
}

func TestRegistry_Register_InvalidContributedRule(t *testing.T) {
	registry := newTestRegistry(t)

	bad := packRule("no-condition", 10)
	bad.Condition = rules.Condition{}

	plugin := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("bad-pack", CapabilityRules)},
		contributed: []rules.Rule{bad},
	}
	err := registry.Register(plugin)

	var inv *InvalidPluginError
	require.ErrorAs(t, err, &inv)
	require.NotEmpty(t, inv.Issues.Errors())
	assert.Contains(t, inv.Issues.Errors()[0].Field, "rules[0]")
}

func TestRegistry_Register_RuleCollisionAcrossPlugins(t *testing.T) {
	registry := newTestRegistry(t)

	first := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("first-pack", CapabilityRules)},
		contributed: []rules.Rule{packRule("shared-id", 10)},
	}
	require.NoError(t, registry.Register(first))

	second := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("second-pack", CapabilityRules)},
		contributed: []rules.Rule{packRule("shared-id", 20)},
	}
	err := registry.Register(second)

	var inv *InvalidPluginError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Error(), "first-pack")
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &mockPlugin{manifest: validManifest("transient")}
	require.NoError(t, registry.Register(plugin))

	require.NoError(t, registry.Unregister("transient"))
	assert.Equal(t, 1, plugin.unloads)
	assert.False(t, registry.Has("transient"))

	err := registry.Unregister("transient")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestRegistry_Unregister_UnloadFailure(t *testing.T) {
	registry := newTestRegistry(t)

	plugin := &mockPlugin{
		manifest:  validManifest("sticky"),
		unloadErr: errors.New("busy"),
	}
	require.NoError(t, registry.Register(plugin))

	err := registry.Unregister("sticky")
	require.Error(t, err)
	assert.True(t, registry.Has("sticky"), "failed unload keeps the plugin registered")
}

func TestRegistry_Rules_AggregationOrder(t *testing.T) {
	registry := newTestRegistry(t)

	first := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("pack-a", CapabilityRules)},
		contributed: []rules.Rule{packRule("a-1", 10), packRule("a-2", 20)},
	}
	second := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("pack-b", CapabilityRules)},
		contributed: []rules.Rule{packRule("b-1", 5)},
	}
	require.NoError(t, registry.Register(first))
	require.NoError(t, registry.Register(second))

	var ids []string
	for _, r := range registry.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, ids, "aggregation follows registration order")

	require.NoError(t, registry.Unregister("pack-a"))
	ids = nil
	for _, r := range registry.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b-1"}, ids)
}

func TestRegistry_ListByCapability(t *testing.T) {
	registry := newTestRegistry(t)

	pack := &mockRulesPlugin{
		mockPlugin:  mockPlugin{manifest: validManifest("pack", CapabilityRules)},
		contributed: []rules.Rule{packRule("pack-1", 10)},
	}
	checker := &mockRuleValidatorPlugin{
		mockPlugin: mockPlugin{manifest: validManifest("checker", CapabilityRuleValidation)},
	}
	plain := &mockPlugin{manifest: validManifest("plain")}

	require.NoError(t, registry.Register(pack))
	require.NoError(t, registry.Register(checker))
	require.NoError(t, registry.Register(plain))

	providers := registry.ListByCapability(CapabilityRules)
	require.Len(t, providers, 1)
	assert.Equal(t, "pack", providers[0].Manifest().ID)

	validators := registry.RuleValidators()
	require.Len(t, validators, 1)
	assert.Equal(t, "checker", validators[0].Manifest().ID)

	assert.Len(t, registry.List(), 3)
}

func TestRegistry_Clear(t *testing.T) {
	registry := newTestRegistry(t)

	a := &mockPlugin{manifest: validManifest("a")}
	b := &mockPlugin{manifest: validManifest("b"), unloadErr: errors.New("busy")}
	require.NoError(t, registry.Register(a))
	require.NoError(t, registry.Register(b))

	registry.Clear()

	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, 1, a.unloads)
	assert.Equal(t, 1, b.unloads, "unload failures do not stop the reset")
	assert.Empty(t, registry.Rules())
}
