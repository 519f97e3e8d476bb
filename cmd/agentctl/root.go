package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentctl",
		Short: "agentctl runs agents against the execution core from the command line",
		Long: `agentctl is a reference CLI for the agent execution core: it builds an
Orchestrator from environment configuration and runs a single agent turn.`,
	}

	cmd.AddCommand(versionCmd())
	cmd.AddCommand(runCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("agentctl", Version)
			return nil
		},
	}
}
