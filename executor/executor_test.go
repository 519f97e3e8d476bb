package executor_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/executor"
	"github.com/sovereignrun/agentcore/guardrail"
	"github.com/sovereignrun/agentcore/tools"
)

func registryWith(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tl := range ts {
		require.NoError(t, r.Register(tl))
	}
	return r
}

func TestExecuteToolNotFound(t *testing.T) {
	exec := executor.New(nil, nil, nil)
	result := exec.Execute(context.Background(), tools.NewRegistry(), agent.ToolCall{Name: "missing"}, "run1", "agent1")
	assert.Equal(t, "Tool not found: missing", result.Error)
}

func TestExecuteSuccess(t *testing.T) {
	tool := tools.Tool{
		Name: "echo",
		Execute: func(_ tools.Context, args any) (any, error) { return args, nil },
	}
	registry := registryWith(t, tool)
	exec := executor.New(nil, nil, nil)

	args, _ := json.Marshal(map[string]any{"msg": "hi"})
	result := exec.Execute(context.Background(), registry, agent.ToolCall{Name: "echo", Arguments: args}, "run1", "agent1")
	require.Empty(t, result.Error)
	assert.Equal(t, map[string]any{"msg": "hi"}, result.Result)
}

func TestExecuteInvalidArguments(t *testing.T) {
	schema, err := tools.NewJSONSchema(map[string]any{
		"type":     "object",
		"required": []any{"path"},
	})
	require.NoError(t, err)
	tool := tools.Tool{
		Name:       "needs-path",
		Parameters: schema,
		Execute:    func(_ tools.Context, args any) (any, error) { return args, nil },
	}
	registry := registryWith(t, tool)
	exec := executor.New(nil, nil, nil)

	args, _ := json.Marshal(map[string]any{})
	result := exec.Execute(context.Background(), registry, agent.ToolCall{Name: "needs-path", Arguments: args}, "run1", "agent1")
	assert.Contains(t, result.Error, "Invalid arguments")
}

type blockAllGuardrail struct{}

func (blockAllGuardrail) FilterInput(context.Context, guardrail.InputCheck) (guardrail.Decision, error) {
	return guardrail.Decision{}, nil
}
func (blockAllGuardrail) FilterOutput(context.Context, guardrail.OutputCheck) (guardrail.Decision, error) {
	return guardrail.Decision{}, nil
}
func (blockAllGuardrail) ApproveToolCall(context.Context, guardrail.ToolCallCheck) (guardrail.Decision, error) {
	return guardrail.Decision{Blocked: true, Reason: "not allowed"}, nil
}

func TestExecuteGuardrailBlocks(t *testing.T) {
	tool := tools.Tool{Name: "echo", Execute: func(_ tools.Context, args any) (any, error) { return args, nil }}
	registry := registryWith(t, tool)
	exec := executor.New(blockAllGuardrail{}, nil, nil)

	result := exec.Execute(context.Background(), registry, agent.ToolCall{Name: "echo"}, "run1", "agent1")
	assert.Contains(t, result.Error, "Tool blocked")
}

func TestExecuteExecutionErrorIsContained(t *testing.T) {
	tool := tools.Tool{
		Name:    "boom",
		Execute: func(_ tools.Context, _ any) (any, error) { panic("kaboom") },
	}
	registry := registryWith(t, tool)
	exec := executor.New(nil, nil, nil)

	result := exec.Execute(context.Background(), registry, agent.ToolCall{Name: "boom"}, "run1", "agent1")
	assert.Contains(t, result.Error, "kaboom")
}
