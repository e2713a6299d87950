package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// rulesBundle lists its rules out of priority order on purpose; the
// engine orders them for evaluation.
const rulesBundle = `version: 1
rules:
  - id: allow-data
    priority: 20
    description: Anyone may lock the data tree
    condition:
      path_prefix: /data/
    action: allow
    enabled: true
  - id: vault-guard
    priority: 10
    condition:
      path_prefix: /vault/
      actions: [write]
    action: require_permission
    required_permission: vault.write
    enabled: true
permissions:
  alice:
    - vault.write
`

// writePluginPack lays out a rule-pack plugin directory under dir.
func writePluginPack(t *testing.T, dir, id, rulesYAML string) {
	t.Helper()
	packDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(packDir, 0755))

	manifest := fmt.Sprintf(`id: %s
name: Release Freeze
version: 1.0.0
api_version: 1.0.0
author: Platform Team
capabilities:
  - rules
`, id)
	require.NoError(t, os.WriteFile(filepath.Join(packDir, "plugin.yaml"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(packDir, "rules.yaml"), []byte(rulesYAML), 0644))
}

const freezeRules = `- id: freeze-window
  priority: 5
  description: No release locks during the freeze
  condition:
    path_prefix: /releases/
  action: deny
  enabled: true
`

func TestNewRulesCommand(t *testing.T) {
	cmd := newRulesCommand()
	assert.NotNil(t, cmd)
	assert.Equal(t, "rules", cmd.Name)
	assert.Equal(t, "List the effective rules in evaluation order", cmd.Description)
	assert.NotNil(t, cmd.Flags)
	assert.NotNil(t, cmd.Run)
}

func TestRunRules_TextInEvaluationOrder(t *testing.T) {
	path := writeBundle(t, rulesBundle)

	output, err := captureStdout(t, func() error {
		return runRules(path, "text")
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Effective rules (2), in evaluation order:")
	assert.Contains(t, output, "[priority 10, require_permission, vault.write]")
	assert.Contains(t, output, "matches: path prefix /vault/ and actions [write]")
	assert.Contains(t, output, "Anyone may lock the data tree")

	guard := strings.Index(output, "vault-guard")
	data := strings.Index(output, "allow-data")
	require.GreaterOrEqual(t, guard, 0)
	require.GreaterOrEqual(t, data, 0)
	assert.Less(t, guard, data, "lower priority should list first")
}

func TestRunRules_ShareableAndDisabled(t *testing.T) {
	path := writeBundle(t, `version: 1
rules:
  - id: allow-data
    priority: 20
    condition:
      path_prefix: /data/
    action: allow
    shareable: true
    enabled: true
  - id: legacy-hold
    priority: 30
    condition:
      path_prefix: /legacy/
    action: allow
    enabled: false
`)

	output, err := captureStdout(t, func() error {
		return runRules(path, "text")
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Effective rules (2), in evaluation order:")
	assert.Contains(t, output, "[priority 20, allow, shareable]")
	assert.Contains(t, output, "[priority 30, allow, disabled]")
}

func TestRunRules_EmptyPolicy(t *testing.T) {
	path := writeBundle(t, "version: 1\n")

	output, err := captureStdout(t, func() error {
		return runRules(path, "text")
	})

	require.NoError(t, err)
	assert.Contains(t, output, "No rules are in effect; every request will be denied.")
}

func TestRunRules_JSONOutput(t *testing.T) {
	path := writeBundle(t, rulesBundle)

	output, err := captureStdout(t, func() error {
		return runRules(path, "json")
	})
	require.NoError(t, err)

	var listed []struct {
		ID       string `json:"id"`
		Priority int    `json:"priority"`
		Enabled  bool   `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "vault-guard", listed[0].ID)
	assert.Equal(t, "allow-data", listed[1].ID)
	assert.True(t, listed[0].Enabled)
}

func TestRunRules_PluginPack(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(bundlePath, []byte(`version: 1
rules:
  - id: allow-data
    priority: 20
    condition:
      path_prefix: /data/
    action: allow
    enabled: true
plugins:
  dirs:
    - packs
`), 0644))
	writePluginPack(t, filepath.Join(dir, "packs"), "release-freeze", freezeRules)

	output, err := captureStdout(t, func() error {
		return runRules(bundlePath, "text")
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Effective rules (2), in evaluation order:")
	assert.Contains(t, output, "No release locks during the freeze")

	freeze := strings.Index(output, "freeze-window")
	data := strings.Index(output, "allow-data")
	require.GreaterOrEqual(t, freeze, 0)
	require.GreaterOrEqual(t, data, 0)
	assert.Less(t, freeze, data, "contributed rule with lower priority should list first")
}

func TestRunRules_DisabledPluginSkipped(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "bundle.yaml")
	require.NoError(t, os.WriteFile(bundlePath, []byte(`version: 1
rules:
  - id: allow-data
    priority: 20
    condition:
      path_prefix: /data/
    action: allow
    enabled: true
plugins:
  dirs:
    - packs
  disabled:
    - release-freeze
`), 0644))
	writePluginPack(t, filepath.Join(dir, "packs"), "release-freeze", freezeRules)

	output, err := captureStdout(t, func() error {
		return runRules(bundlePath, "text")
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Effective rules (1), in evaluation order:")
	assert.NotContains(t, output, "freeze-window")
}

func TestRunRules_MissingBundle(t *testing.T) {
	err := runRules(filepath.Join(t.TempDir(), "missing.yaml"), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read bundle")
}

func TestDescribeCondition(t *testing.T) {
	tests := []struct {
		name string
		cond rules.Condition
		want string
	}{
		{
			name: "path prefix only",
			cond: rules.Condition{PathPrefix: "/data/"},
			want: "path prefix /data/",
		},
		{
			name: "path pattern",
			cond: rules.Condition{PathPattern: `\.lock$`},
			want: `path pattern \.lock$`,
		},
		{
			name: "users and actions",
			cond: rules.Condition{Users: []string{"alice", "bob"}, Actions: []string{"write"}},
			want: "users [alice, bob] and actions [write]",
		},
		{
			name: "metadata keys sorted",
			cond: rules.Condition{MetadataEquals: map[string]string{"ticket": "CHG-1", "env": "prod"}},
			want: "metadata {env=prod, ticket=CHG-1}",
		},
		{
			name: "combined",
			cond: rules.Condition{PathPrefix: "/data/", Users: []string{"alice"}},
			want: "path prefix /data/ and users [alice]",
		},
		{
			name: "empty",
			cond: rules.Condition{},
			want: "(no predicates)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeCondition(tt.cond))
		})
	}
}

func TestRulesCommand_Run(t *testing.T) {
	path := writeBundle(t, rulesBundle)
	cmd := newRulesCommand()

	output, err := captureStdout(t, func() error {
		return cmd.Run([]string{"-bundle", path})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "Effective rules (2), in evaluation order:")
}
