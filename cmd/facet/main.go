// Package main is the facet command line tool: compile and validate
// question banks, run scripted sessions, and verify archived results.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/facet/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
