// Command snaplock-cli is the offline policy toolbox: it validates,
// explains, and simulates bundles without a running agent.
package main

import (
	"fmt"
	"os"

	"github.com/platinummonkey/snaplock/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
