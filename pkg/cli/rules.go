package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// newRulesCommand creates a new rules command
func newRulesCommand() *Command {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)

	var (
		bundlePath = fs.String("bundle", "bundle.yaml", "Path to the policy bundle file")
		format     = fs.String("format", "text", "Output format: text, json")
	)

	return &Command{
		Name:        "rules",
		Description: "List the effective rules in evaluation order",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}

			return runRules(*bundlePath, *format)
		},
	}
}

func runRules(bundlePath, format string) error {
	ctx := context.Background()
	e, _, err := newPolicyEngine(ctx, bundlePath)
	if err != nil {
		return err
	}
	defer e.Close()

	effective := e.Rules()

	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(effective)
	default:
		rulesOutputText(effective)
	}
	return nil
}

func rulesOutputText(effective []rules.Rule) {
	if len(effective) == 0 {
		fmt.Println("No rules are in effect; every request will be denied.")
		return
	}

	fmt.Printf("Effective rules (%d), in evaluation order:\n\n", len(effective))
	for _, r := range effective {
		attrs := []string{fmt.Sprintf("priority %d", r.Priority), string(r.Action)}
		if r.Action == rules.ActionRequirePermission {
			attrs = append(attrs, r.RequiredPermission)
		}
		if r.Shareable {
			attrs = append(attrs, "shareable")
		}
		if !r.Enabled {
			attrs = append(attrs, "disabled")
		}

		fmt.Printf("  - %-25s [%s]\n", r.ID, strings.Join(attrs, ", "))
		if r.Description != "" {
			fmt.Printf("    %s\n", r.Description)
		}
		fmt.Printf("    matches: %s\n", describeCondition(r.Condition))
	}
}

// describeCondition renders a condition's set predicates on one line.
func describeCondition(c rules.Condition) string {
	var parts []string
	if c.PathPrefix != "" {
		parts = append(parts, fmt.Sprintf("path prefix %s", c.PathPrefix))
	}
	if c.PathPattern != "" {
		parts = append(parts, fmt.Sprintf("path pattern %s", c.PathPattern))
	}
	if len(c.Users) > 0 {
		parts = append(parts, fmt.Sprintf("users [%s]", strings.Join(c.Users, ", ")))
	}
	if len(c.Actions) > 0 {
		parts = append(parts, fmt.Sprintf("actions [%s]", strings.Join(c.Actions, ", ")))
	}
	if len(c.MetadataEquals) > 0 {
		keys := make([]string, 0, len(c.MetadataEquals))
		for k := range c.MetadataEquals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%s", k, c.MetadataEquals[k])
		}
		parts = append(parts, fmt.Sprintf("metadata {%s}", strings.Join(pairs, ", ")))
	}
	if len(parts) == 0 {
		return "(no predicates)"
	}
	return strings.Join(parts, " and ")
}
