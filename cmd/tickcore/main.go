// Package main is the tickcore command: it runs engine assemblies from
// config files and inspects journaled runs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/tickcore/internal/cli"
)

func main() {
	env, err := cli.ParseEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCommandError)
	}

	cmd := cli.NewRootCommand(env)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
