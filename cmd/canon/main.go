package main

import (
	"fmt"
	"os"

	"github.com/ashgale/canon/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "canon: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
