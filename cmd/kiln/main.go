// Command kiln is the CLI front end for the orchestrator implemented by
// the kiln package: it crawls a sandbox, builds a task graph, and either
// runs it through the driver (build), prints it (plan), or renders it as a
// portable environment dump (eject).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kiln "github.com/kilnforge/kiln"
)

var storeFlags struct {
	sandboxPath string
}

func main() {
	root := &cobra.Command{
		Use:           "kiln",
		Short:         "Reproducible, content-addressed build orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&storeFlags.sandboxPath, "sandbox", "", "sandbox root (defaults to $KILN_SANDBOX or cwd)")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newEjectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kiln: %v\n", err)
		_ = kiln.RunAtExit()
		os.Exit(1)
	}
	if err := kiln.RunAtExit(); err != nil {
		fmt.Fprintf(os.Stderr, "kiln: at-exit cleanup: %v\n", err)
		os.Exit(1)
	}
}
