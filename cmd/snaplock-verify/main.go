// snaplock-verify checks a policy bundle the way the agent would load
// it and reports every finding. Exit code 0 means the bundle would be
// accepted, 1 means it would be rejected, 2 means it could not be
// read at all.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/snaplock/pkg/config"
	"github.com/platinummonkey/snaplock/pkg/plugins"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

var (
	bundlePath   = flag.String("bundle", getEnv("SNAPLOCK_BUNDLE_PATH", "/etc/snaplock/bundle.yaml"), "Path to the policy bundle to verify")
	checkPlugins = flag.Bool("plugins", false, "Also load the bundle's activated rule packs and verify their rules")
	strict       = flag.Bool("strict", false, "Treat warnings as failures")
	quiet        = flag.Bool("quiet", false, "Suppress findings, report through the exit code only")
)

func main() {
	flag.Parse()

	bundle, err := config.LoadBundle(*bundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	result := bundle.Verify()
	if *checkPlugins {
		result = append(result, verifyRulePacks(bundle)...)
	}

	errors := result.Errors()
	warnings := result.Warnings()

	if !*quiet {
		for _, msg := range result.Messages() {
			fmt.Println(msg)
		}
		fmt.Printf("%s: %d rules, %d users, %d errors, %d warnings\n",
			*bundlePath, len(bundle.Rules), len(bundle.Permissions), len(errors), len(warnings))
	}

	if len(errors) > 0 || (*strict && len(warnings) > 0) {
		os.Exit(1)
	}
}

// verifyRulePacks loads every activated rule pack and validates the
// rules it contributes. Rule file problems surface at load time, not
// discovery, so packs are fully loaded here.
func verifyRulePacks(bundle *config.Bundle) validation.Result {
	if len(bundle.Plugins.Dirs) == 0 {
		return nil
	}

	quietLog := logrus.New()
	quietLog.SetOutput(io.Discard)

	loader := plugins.NewLoader(config.ResolvePluginDirs(*bundlePath, bundle.Plugins.Dirs), quietLog)
	discovered, err := loader.Discover(context.Background())
	if err != nil {
		return validation.Result{{
			Field:    "plugins",
			Message:  fmt.Sprintf("Rule pack discovery failed: %v", err),
			Severity: validation.SeverityError,
		}}
	}

	validator := validation.NewValidator()
	var result validation.Result
	for _, pack := range discovered {
		id := pack.Manifest().ID
		if !bundle.Plugins.Activates(id) {
			continue
		}
		if err := pack.Load(); err != nil {
			result = append(result, validation.ValidationError{
				Field:    fmt.Sprintf("plugins.%s", id),
				Message:  fmt.Sprintf("Failed to load rules: %v", err),
				Severity: validation.SeverityError,
			})
			continue
		}
		provider, ok := pack.(plugins.RulesProvider)
		if !ok {
			continue
		}
		for _, finding := range validator.ValidateRuleSet(provider.Rules()) {
			finding.Field = fmt.Sprintf("plugins.%s.%s", id, finding.Field)
			result = append(result, finding)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
