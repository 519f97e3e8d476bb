package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sovereignrun/agentcore/cost"
	"github.com/sovereignrun/agentcore/executor"
	"github.com/sovereignrun/agentcore/guardrail"
	"github.com/sovereignrun/agentcore/memory/inmem"
	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/orchestrator"
	"github.com/sovereignrun/agentcore/providers/anthropic"
	"github.com/sovereignrun/agentcore/providers/mockbackend"
	"github.com/sovereignrun/agentcore/providers/openai"
	"github.com/sovereignrun/agentcore/sandbox/local"
	"github.com/sovereignrun/agentcore/telemetry"
)

// buildOrchestrator wires an Orchestrator from cfg and command-line flags.
// Every subsystem is optional and nil means disabled.
func buildOrchestrator(cfg cliConfig, useMock bool, verbose bool) (*orchestrator.Orchestrator, error) {
	logger := telemetry.NewZerologLogger(zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger())
	if !verbose {
		logger = telemetry.NewNoopLogger()
	}

	resolver := func(provider string) (model.Client, error) {
		if useMock {
			return mockbackend.New(mockbackend.Text("Hello!", "stop", 10, 5)), nil
		}
		switch provider {
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				return nil, fmt.Errorf("agentctl: ANTHROPIC_API_KEY is not set")
			}
			return anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, "claude-sonnet-4-5")
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				return nil, fmt.Errorf("agentctl: OPENAI_API_KEY is not set")
			}
			return openai.NewFromAPIKey(cfg.OpenAIAPIKey, "gpt-5")
		default:
			return nil, fmt.Errorf("agentctl: no backend configured for provider %q", provider)
		}
	}

	guardrails := guardrail.NewBasic(guardrail.BasicOptions{
		BlockedInputSubstrings: []string{},
		Label:                  "agentctl",
	})

	ledger := cost.NewLedger(cost.Caps{MaxPerRun: cfg.MaxCostPerRun})

	opts := orchestrator.Options{
		Resolver:        resolver,
		Memory:          inmem.New(),
		Guardrails:      guardrails,
		Injection:       guardrail.NewPatternInjectionDetector(),
		Executor:        executor.New(guardrails, local.New(), logger),
		Ledger:          ledger,
		Logger:          logger,
		Tracer:          telemetry.NewOTelTracer("agentctl"),
		DefaultProvider: cfg.DefaultProvider,
	}
	return orchestrator.New(opts), nil
}
