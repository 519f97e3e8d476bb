// Package guardrail defines the policy layer the orchestrator consults at
// three checkpoints per run: filtering the initial user input, filtering
// each iteration's assistant output, and approving individual tool calls
// before dispatch.
package guardrail

import (
	"context"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/tools"
)

type (
	// Engine is the guardrail/constitution policy layer consulted by the
	// orchestrator. A nil Engine disables all three checkpoints.
	Engine interface {
		// FilterInput evaluates the user's input before any backend call.
		// A Decision with Blocked=true aborts the run.
		FilterInput(ctx context.Context, input InputCheck) (Decision, error)

		// FilterOutput evaluates one iteration's assistant content against
		// the full message context. A Decision with Blocked=true (and no
		// Revision) aborts the run; a Decision with a non-empty Revision
		// substitutes the assistant content instead of failing.
		FilterOutput(ctx context.Context, input OutputCheck) (Decision, error)

		// ApproveToolCall decides whether a single (tool, arguments) pair
		// may be dispatched.
		ApproveToolCall(ctx context.Context, input ToolCallCheck) (Decision, error)
	}

	// InputCheck carries the information made available for the input
	// checkpoint.
	InputCheck struct {
		RunID    string
		AgentID  string
		ThreadID string
		Input    string
	}

	// OutputCheck carries the information made available for the output
	// checkpoint.
	OutputCheck struct {
		RunID     string
		AgentID   string
		Iteration int
		Content   string
		Messages  []*model.Message
	}

	// ToolCallCheck carries the information made available for the
	// per-tool-call approval checkpoint.
	ToolCallCheck struct {
		RunID     string
		AgentID   string
		ToolName  tools.Name
		Arguments any
	}

	// Decision is the outcome of a guardrail checkpoint.
	Decision struct {
		// Blocked rejects the checkpoint. Reason is always set when Blocked
		// is true.
		Blocked bool
		Reason  string

		// Revision, when non-empty, replaces the checked content instead of
		// blocking (only meaningful for FilterOutput).
		Revision string

		// Labels annotate downstream telemetry with the policy applied.
		Labels map[string]string
	}
)
