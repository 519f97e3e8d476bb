// Command agentctl is a reference CLI demonstrating the execution core: it
// wires a BackendResolver, memory, guardrails, and cost tracking into an
// Orchestrator and runs a single agent turn from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
