package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "certctl",
		Short:         "Participant certificate tooling for the certificate management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenCertCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newKeysCmd())

	return root
}
