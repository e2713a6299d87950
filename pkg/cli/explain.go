package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/platinummonkey/snaplock/pkg/rules"
)

// newExplainCommand creates a new explain command
func newExplainCommand() *Command {
	fs := flag.NewFlagSet("explain", flag.ExitOnError)

	var (
		bundlePath = fs.String("bundle", "bundle.yaml", "Path to the policy bundle file")
		path       = fs.String("path", "", "Path the request targets")
		user       = fs.String("user", "", "Requesting user")
		action     = fs.String("action", "", "Requested action (e.g. write)")
		meta       = fs.String("meta", "", "Comma-separated metadata pairs (key=value)")
		format     = fs.String("format", "text", "Output format: text, json")
	)

	return &Command{
		Name:        "explain",
		Description: "Explain how the policy decides one request",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}

			return runExplain(*bundlePath, *path, *user, *action, *meta, *format)
		},
	}
}

func runExplain(bundlePath, path, user, action, meta, format string) error {
	if path == "" || user == "" || action == "" {
		return fmt.Errorf("explain requires -path, -user, and -action")
	}

	metadata, err := parseMetadata(meta)
	if err != nil {
		return err
	}

	ctx := context.Background()
	e, _, err := newPolicyEngine(ctx, bundlePath)
	if err != nil {
		return err
	}
	defer e.Close()

	decision, trace, err := e.Explain(ctx, rules.Request{
		Path:     path,
		User:     user,
		Action:   action,
		Metadata: metadata,
	})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return explainOutputJSON(decision, trace)
	default:
		explainOutputText(decision, trace)
	}
	return nil
}

// parseMetadata turns "ticket=CHG-42,env=prod" into a metadata map.
func parseMetadata(meta string) (map[string]string, error) {
	if meta == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(meta, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid metadata pair %q (expected key=value)", pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

func explainOutputText(decision rules.Decision, trace []rules.TraceStep) {
	verdict := "DENIED"
	if decision.Allowed {
		verdict = "ALLOWED"
	}
	fmt.Printf("%s: %s\n", verdict, decision.Reason)
	if decision.Allowed && decision.Shareable {
		fmt.Printf("The grant would be shareable.\n")
	}

	if len(trace) == 0 {
		fmt.Printf("\nNo rules were visited.\n")
		return
	}

	fmt.Printf("\nTrace (%d rules visited):\n", len(trace))
	for i, step := range trace {
		marker := " "
		if step.Matched {
			marker = "*"
		}
		fmt.Printf(" %s %2d. %s\n", marker, i+1, step.String())
	}
}

func explainOutputJSON(decision rules.Decision, trace []rules.TraceStep) error {
	output := struct {
		Decision rules.Decision    `json:"decision"`
		Trace    []rules.TraceStep `json:"trace"`
	}{
		Decision: decision,
		Trace:    trace,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
