package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/executor"
	"github.com/sovereignrun/agentcore/messagebuilder"
	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/orchestrator"
	"github.com/sovereignrun/agentcore/tools"
)

// mockClient is a deterministic model.Client test double: it returns the
// next scripted response on each Complete call.
type mockClient struct {
	responses []*model.Response
	calls     int
}

func (m *mockClient) Complete(_ context.Context, _ *model.Request) (*model.Response, error) {
	if m.calls >= len(m.responses) {
		return nil, errors.New("mockClient: no more scripted responses")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *mockClient) Stream(_ context.Context, _ *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func textResponse(text, stopReason string, in, out int) *model.Response {
	return &model.Response{
		Content:    []model.Message{{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: text}}}},
		StopReason: stopReason,
		Usage:      model.TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

func newTestOrchestrator(t *testing.T, client model.Client) *orchestrator.Orchestrator {
	t.Helper()
	return orchestrator.New(orchestrator.Options{
		Resolver: func(provider string) (model.Client, error) { return client, nil },
		Executor: executor.New(nil, nil, nil),
	})
}

func TestRunOneShotNoTools(t *testing.T) {
	client := &mockClient{responses: []*model.Response{textResponse("Hello!", "stop", 10, 5)}}
	o := newTestOrchestrator(t, client)

	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "Be brief."}
	res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Output)
	assert.Empty(t, res.ToolCalls)
	assert.Equal(t, 15, res.Usage.TotalTokens)
	assert.Equal(t, "agent.run", res.Trace.Spans[0].Name)
	assert.NotEmpty(t, res.TurnID)
}

func TestRunInsightsInjectedIntoSystemMessage(t *testing.T) {
	client := &mockClient{responses: []*model.Response{textResponse("ok", "stop", 1, 1)}}
	o := newTestOrchestrator(t, client)
	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "Be brief."}

	o.AddInsight(a.ID, messagebuilder.Insight{ID: "lesson-1", Text: "Prefer concise answers.", Tier: messagebuilder.TierGuidance})

	res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "Hi"})
	require.NoError(t, err)
	var systemText string
	for _, m := range res.Messages {
		if m.Role == model.ConversationRoleSystem {
			systemText = m.Parts[0].(model.TextPart).Text
		}
	}
	assert.Contains(t, systemText, "Prefer concise answers.")
}

func TestRunInsightMinRunsBetweenSuppressesRepeat(t *testing.T) {
	client := &mockClient{responses: []*model.Response{
		textResponse("ok1", "stop", 1, 1),
		textResponse("ok2", "stop", 1, 1),
		textResponse("ok3", "stop", 1, 1),
	}}
	o := newTestOrchestrator(t, client)
	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "Be brief."}

	o.AddInsight(a.ID, messagebuilder.Insight{ID: "lesson-1", Text: "spaced guidance", Tier: messagebuilder.TierGuidance, MinRunsBetween: 2})

	systemTextAtRun := func() string {
		res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "Hi"})
		require.NoError(t, err)
		for _, m := range res.Messages {
			if m.Role == model.ConversationRoleSystem {
				return m.Parts[0].(model.TextPart).Text
			}
		}
		return ""
	}

	assert.Contains(t, systemTextAtRun(), "spaced guidance")
	assert.NotContains(t, systemTextAtRun(), "spaced guidance")
	assert.Contains(t, systemTextAtRun(), "spaced guidance")
}

func TestRunTwoToolSequential(t *testing.T) {
	toolACalled, toolBCalled := false, false
	toolA := tools.Tool{Name: "tool_a", Execute: func(_ tools.Context, _ any) (any, error) {
		toolACalled = true
		return map[string]any{"result": "A"}, nil
	}}
	toolB := tools.Tool{Name: "tool_b", Execute: func(_ tools.Context, _ any) (any, error) {
		toolBCalled = true
		return map[string]any{"result": "B"}, nil
	}}

	client := &mockClient{responses: []*model.Response{
		{
			Content:    []model.Message{{Role: model.ConversationRoleAssistant}},
			ToolCalls:  []model.ToolCall{{ID: "call_1", Name: "tool_a", Payload: []byte(`{}`)}, {ID: "call_2", Name: "tool_b", Payload: []byte(`{}`)}},
			StopReason: "tool_calls",
		},
		textResponse("Done", "stop", 5, 5),
	}}
	o := newTestOrchestrator(t, client)
	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "x", Tools: []tools.Tool{toolA, toolB}}

	res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "go"})
	require.NoError(t, err)
	assert.True(t, toolACalled)
	assert.True(t, toolBCalled)
	assert.Equal(t, "Done", res.Output)
	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, tools.Name("tool_a"), res.ToolCalls[0].Name)
	assert.Equal(t, tools.Name("tool_b"), res.ToolCalls[1].Name)

	// transcript ends ...assistant(tool_calls), tool(a), tool(b), assistant("Done")
	n := len(res.Messages)
	require.GreaterOrEqual(t, n, 4)
	assert.Equal(t, model.ConversationRoleTool, res.Messages[n-3].Role)
	assert.Equal(t, model.ConversationRoleTool, res.Messages[n-2].Role)
	assert.Equal(t, model.ConversationRoleAssistant, res.Messages[n-1].Role)
}

func TestRunMaxIterations(t *testing.T) {
	tool := tools.Tool{Name: "loop_tool", Execute: func(_ tools.Context, _ any) (any, error) { return "call me again", nil }}
	resp := func() *model.Response {
		return &model.Response{
			Content:    []model.Message{{Role: model.ConversationRoleAssistant}},
			ToolCalls:  []model.ToolCall{{ID: "c", Name: "loop_tool", Payload: []byte(`{}`)}},
			StopReason: "tool_calls",
		}
	}
	client := &mockClient{responses: []*model.Response{resp(), resp(), resp(), resp(), resp()}}
	o := newTestOrchestrator(t, client)
	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "x", Tools: []tools.Tool{tool}, MaxIterations: 3}

	res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "go"})
	require.NoError(t, err)
	assert.LessOrEqual(t, client.calls, 3)
	assert.LessOrEqual(t, len(res.ToolCalls), 3)
}

func TestRunToolNotFoundFoldedIntoTranscript(t *testing.T) {
	client := &mockClient{responses: []*model.Response{
		{
			Content:    []model.Message{{Role: model.ConversationRoleAssistant}},
			ToolCalls:  []model.ToolCall{{ID: "c1", Name: "missing", Payload: []byte(`{}`)}},
			StopReason: "tool_calls",
		},
		textResponse("ok", "stop", 1, 1),
	}}
	o := newTestOrchestrator(t, client)
	a := agent.Agent{ID: "agent-1", Model: "mock/m1", Instructions: "x"}

	res, err := o.Run(context.Background(), a, agent.RunOptions{Input: "go"})
	require.NoError(t, err)
	found := false
	for _, m := range res.Messages {
		if m.Role == model.ConversationRoleTool {
			found = true
			text := m.Parts[0].(model.TextPart).Text
			assert.Contains(t, text, "Tool not found")
		}
	}
	assert.True(t, found)
}
