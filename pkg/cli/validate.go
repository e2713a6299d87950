package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/snaplock/pkg/config"
	"github.com/platinummonkey/snaplock/pkg/validation"
)

// newValidateCommand creates a new validate command
func newValidateCommand() *Command {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)

	var (
		bundlePath = fs.String("bundle", "bundle.yaml", "Path to the policy bundle file")
		format     = fs.String("format", "text", "Output format: text, json")
		strict     = fs.Bool("strict", false, "Exit with error code on warnings too")
	)

	return &Command{
		Name:        "validate",
		Description: "Validate a policy bundle file",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}

			return runValidate(*bundlePath, *format, *strict)
		},
	}
}

func runValidate(bundlePath, format string, strict bool) error {
	bundle, err := config.LoadBundle(bundlePath)
	if err != nil {
		return err
	}

	result := bundle.Verify()

	switch format {
	case "json":
		if err := validateOutputJSON(bundlePath, result); err != nil {
			return err
		}
	default:
		validateOutputText(bundlePath, result)
	}

	errors := result.Errors()
	warnings := result.Warnings()
	if len(errors) > 0 {
		return fmt.Errorf("bundle validation failed with %d errors", len(errors))
	}
	if strict && len(warnings) > 0 {
		return fmt.Errorf("bundle validation failed with %d warnings (strict)", len(warnings))
	}
	return nil
}

func validateOutputText(bundlePath string, result validation.Result) {
	for _, msg := range result.Messages() {
		fmt.Printf("%s: %s\n", bundlePath, msg)
	}

	errors := result.Errors()
	warnings := result.Warnings()
	fmt.Printf("\n")
	fmt.Printf("Summary:\n")
	fmt.Printf("  Errors:   %d\n", len(errors))
	fmt.Printf("  Warnings: %d\n", len(warnings))

	if len(errors) == 0 {
		fmt.Printf("\n✓ Bundle is valid\n")
	}
}

func validateOutputJSON(bundlePath string, result validation.Result) error {
	output := struct {
		Bundle   string            `json:"bundle"`
		Valid    bool              `json:"valid"`
		Errors   validation.Result `json:"errors"`
		Warnings validation.Result `json:"warnings"`
	}{
		Bundle:   bundlePath,
		Valid:    result.Valid(),
		Errors:   result.Errors(),
		Warnings: result.Warnings(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
