package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Command is one node of the CLI tree. Leaf commands carry a Run
// function and their own flag set; the root only dispatches.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand builds the snaplock command tree.
func NewRootCommand() *Command {
	root := &Command{
		Name:        "snaplock",
		Description: "Snaplock - Policy-gated file locking CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("snaplock", flag.ExitOnError),
	}

	// Add subcommands
	root.Subcommands["validate"] = newValidateCommand()
	root.Subcommands["explain"] = newExplainCommand()
	root.Subcommands["simulate"] = newSimulateCommand()
	root.Subcommands["rules"] = newRulesCommand()

	return root
}

// Execute dispatches os.Args to the matching subcommand.
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command %q (run %s --help for usage)", args[0], c.Name)
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
