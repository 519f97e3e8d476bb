package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sovereignrun/agentcore/agent"
)

func runCmd() *cobra.Command {
	var (
		input        string
		modelID      string
		instructions string
		threadID     string
		mock         bool
		verbose      bool
		withTools    bool
		maxIter      int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single agent turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			o, err := buildOrchestrator(cfg, mock, verbose)
			if err != nil {
				return err
			}
			defer o.Close(context.Background())

			a := agent.Agent{
				ID:            "agentctl",
				Name:          "agentctl",
				Model:         modelID,
				Instructions:  instructions,
				MaxIterations: maxIter,
				Timeout:       timeout,
			}
			if withTools {
				a.Tools = append(a.Tools, currentTimeTool())
			}

			res, err := o.Run(context.Background(), a, agent.RunOptions{
				Input:    input,
				ThreadID: threadID,
			})
			if err != nil {
				return fmt.Errorf("agentctl: run failed: %w", err)
			}

			fmt.Println(res.Output)
			if verbose {
				fmt.Printf("runID=%s model=%s tokens=%d cost=%.6f toolCalls=%d\n",
					res.RunID, res.ModelUsed, res.Usage.TotalTokens, res.Usage.Cost, len(res.ToolCalls))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "user input for the run")
	cmd.Flags().StringVarP(&modelID, "model", "m", "mock/m1", `model, as "provider/model"`)
	cmd.Flags().StringVar(&instructions, "instructions", "Be brief.", "system instructions")
	cmd.Flags().StringVar(&threadID, "thread-id", "", "thread id for memory reuse across runs")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the deterministic mock backend instead of a live provider")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print structured logs and run metadata")
	cmd.Flags().BoolVar(&withTools, "with-tools", false, "register the built-in demo tools")
	cmd.Flags().IntVar(&maxIter, "max-iterations", 0, "override the agent's max control-loop iterations")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the agent's run timeout")

	_ = cmd.MarkFlagRequired("input")
	return cmd
}
