// Package executor implements the Tool Executor: dispatching a single
// validated tool invocation, natively or via sandbox, with cancellation,
// timeout, and guardrail approval.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/guardrail"
	"github.com/sovereignrun/agentcore/sandbox"
	"github.com/sovereignrun/agentcore/telemetry"
	"github.com/sovereignrun/agentcore/toolerrors"
	"github.com/sovereignrun/agentcore/tools"
)

// Executor dispatches ToolCalls against a Registry.
type Executor struct {
	Guardrails    guardrail.Engine // nil disables the approval checkpoint
	Sandbox       sandbox.Sandbox  // nil forces native execution
	Logger        telemetry.Logger
	FilterEnabled bool // mirrors spec's "guardrails?, filterEnabled" gate
}

// New constructs an Executor. A zero-value Executor is usable: it runs
// tools natively with no guardrail checkpoint.
func New(guardrails guardrail.Engine, sb sandbox.Sandbox, logger telemetry.Logger) *Executor {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Executor{Guardrails: guardrails, Sandbox: sb, Logger: logger, FilterEnabled: guardrails != nil}
}

// Execute runs a single tool call in order: lookup, argument validation,
// guardrail approval, dispatch, error containment.
// Execute never returns a non-nil error for tool-level failures; those are
// folded into the returned agent.ToolResult's Error field, matching spec
// §7's propagation policy that tool execution errors never abort the run.
func (e *Executor) Execute(ctx context.Context, registry *tools.Registry, call agent.ToolCall, runID, agentID string) agent.ToolResult {
	result := agent.ToolResult{CallID: call.ID, Name: call.Name}

	tool, ok := registry.Get(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("Tool not found: %s", call.Name)
		return result
	}

	if len(call.Arguments) > tools.MaxArgumentsSize {
		result.Error = fmt.Sprintf("Invalid arguments: payload of %d bytes exceeds %d", len(call.Arguments), tools.MaxArgumentsSize)
		return result
	}

	var args any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			result.Error = fmt.Sprintf("Invalid arguments: %s", err.Error())
			return result
		}
	}
	if tool.Parameters != nil {
		validated, ok, err := tool.Parameters.SafeParse(args)
		if !ok {
			msg := "arguments did not satisfy the tool's parameter schema"
			if err != nil {
				msg = err.Error()
			}
			result.Error = fmt.Sprintf("Invalid arguments: %s", msg)
			return result
		}
		args = validated
	}

	if e.FilterEnabled && e.Guardrails != nil {
		decision, err := e.Guardrails.ApproveToolCall(ctx, guardrail.ToolCallCheck{
			RunID: runID, AgentID: agentID, ToolName: call.Name, Arguments: args,
		})
		if err != nil {
			result.Error = fmt.Sprintf("Tool blocked: %s", err.Error())
			return result
		}
		if decision.Blocked {
			result.Error = fmt.Sprintf("Tool blocked: %s", decision.Reason)
			return result
		}
	}
	if tool.Approval != nil {
		if ok, reason := tool.Approval(ctx, args); !ok {
			result.Error = fmt.Sprintf("Tool blocked: %s", reason)
			return result
		}
	}

	value, execErr := e.dispatch(ctx, tool, args, runID, agentID)
	if execErr != nil {
		result.Error = toolerrors.FromError(execErr).Error()
		return result
	}
	result.Result = value
	return result
}

func (e *Executor) dispatch(ctx context.Context, tool tools.Tool, args any, runID, agentID string) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	if tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(tool.Timeout))
		defer cancel()
	}

	if tool.Sandbox != nil {
		return e.dispatchSandbox(ctx, tool, args, runID, agentID)
	}
	if tool.Execute == nil {
		return nil, fmt.Errorf("tool %q has no execute function and no sandbox descriptor", tool.Name)
	}
	return tool.Execute(tools.Context{AgentID: agentID, RunID: runID, Context: ctx}, args)
}

func (e *Executor) dispatchSandbox(ctx context.Context, tool tools.Tool, args any, runID, agentID string) (any, error) {
	if e.Sandbox != nil && !e.Sandbox.IsAvailable(ctx) {
		// Initialize lazily on the first sandbox-routed call; a failure
		// leaves the sandbox unavailable and falls through to native.
		_ = e.Sandbox.Initialize(ctx)
	}
	if e.Sandbox == nil || !e.Sandbox.IsAvailable(ctx) {
		if e.Logger != nil {
			e.Logger.Warn(ctx, "sandbox unavailable, falling back to native execution", "tool", string(tool.Name))
		}
		if tool.Execute == nil {
			return nil, fmt.Errorf("sandbox unavailable and tool %q has no native execute fallback", tool.Name)
		}
		return tool.Execute(tools.Context{AgentID: agentID, RunID: runID, Context: ctx}, args)
	}

	req, err := buildSandboxRequest(*tool.Sandbox, args)
	if err != nil {
		return nil, err
	}
	res, err := e.Sandbox.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Kind == sandbox.KindModule {
		if res.ParsedJSON != nil {
			return res.ParsedJSON, nil
		}
		return res.Stdout, nil
	}
	return map[string]any{
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
		"exitCode":  res.ExitCode,
		"timedOut":  res.TimedOut,
		"duration":  res.Duration.String(),
		"command":   res.Command,
	}, nil
}

func buildSandboxRequest(descriptor tools.Sandbox, args any) (sandbox.Request, error) {
	switch descriptor.Kind {
	case tools.SandboxKindCommand:
		m, _ := args.(map[string]any)
		req := sandbox.Request{Kind: sandbox.KindCommand}
		if m != nil {
			if v, ok := m["command"].(string); ok {
				req.Command = v
			}
			if v, ok := m["cwd"].(string); ok {
				req.Cwd = v
			}
			if v, ok := m["timeout"].(float64); ok {
				req.Timeout = time.Duration(v) * time.Millisecond
			}
			if envAny, ok := m["env"].(map[string]any); ok {
				env := make(map[string]string, len(envAny))
				for k, v := range envAny {
					if s, ok := v.(string); ok {
						env[k] = s
					}
				}
				req.Env = env
			}
		}
		if req.Command == "" {
			return sandbox.Request{}, fmt.Errorf("command-style sandbox tool requires a %q argument", "command")
		}
		return req, nil
	case tools.SandboxKindModule:
		stdin, err := json.Marshal(args)
		if err != nil {
			return sandbox.Request{}, fmt.Errorf("marshal module sandbox arguments: %w", err)
		}
		return sandbox.Request{Kind: sandbox.KindModule, Module: descriptor.Module, Stdin: stdin}, nil
	default:
		return sandbox.Request{}, fmt.Errorf("unknown sandbox kind %q", descriptor.Kind)
	}
}
