package main

import (
	"fmt"
	"os"

	"github.com/promoteros/admission/cmd/admissionctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "admissionctl",
		Short: "Administrative tool for the admission gateway",
		Long:  "CLI tool for managing IP blocks, inspecting policies, and smoke-testing rate limits",
	}

	rootCmd.AddCommand(commands.NewBlocksCmd())
	rootCmd.AddCommand(commands.NewPoliciesCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
