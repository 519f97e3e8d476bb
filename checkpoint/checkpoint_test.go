package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/checkpoint"
	"github.com/sovereignrun/agentcore/checkpoint/inmem"
	"github.com/sovereignrun/agentcore/model"
)

func sampleCheckpoint() checkpoint.Checkpoint {
	return checkpoint.Checkpoint{
		ID:        "ckpt-1",
		TraceID:   "trace-1",
		RunID:     "run-1",
		AgentID:   "agent-1",
		StepIndex: 1,
		Messages: []*model.Message{
			{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: "be brief"}}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
			{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "hello there"}}},
		},
		PendingToolCalls: []agent.ToolCall{{ID: "c1", Name: "search", Arguments: []byte(`{"q":"x"}`)}},
	}
}

func TestDeterministicReplayProducesNoNewWork(t *testing.T) {
	ckpt := sampleCheckpoint()
	result := checkpoint.DeterministicReplay(ckpt, checkpoint.Overrides{})
	assert.Equal(t, "hello there", result.Result.Output)
	assert.Equal(t, 0, result.StepsExecuted)
	assert.Equal(t, 2, result.StepsReplayed)
	assert.Nil(t, result.DivergedAt)
}

func TestDeterministicReplayAppliesMessageEdits(t *testing.T) {
	ckpt := sampleCheckpoint()
	overrides := checkpoint.Overrides{MessageEdits: map[int]*model.Message{
		2: {Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "edited"}}},
	}}
	result := checkpoint.DeterministicReplay(ckpt, overrides)
	assert.Equal(t, "edited", result.Result.Output)
}

type stubRunner struct {
	result agent.RunResult
	trace  string
}

func (s stubRunner) RunFromTranscript(_ []*model.Message, _ agent.Agent) (agent.RunResult, string, error) {
	return s.result, s.trace, nil
}

func TestLiveReplayNoDivergence(t *testing.T) {
	ckpt := sampleCheckpoint()
	runner := stubRunner{
		result: agent.RunResult{ToolCalls: []agent.ToolCall{{ID: "new-id", Name: "search", Arguments: []byte(`{"q":"x"}`)}}},
		trace:  "trace-2",
	}
	result, err := checkpoint.LiveReplay(ckpt, checkpoint.Overrides{}, agent.Agent{}, runner)
	require.NoError(t, err)
	assert.Nil(t, result.DivergedAt)
	assert.Equal(t, "trace-2", result.NewTraceID)
}

func TestLiveReplayDetectsDivergence(t *testing.T) {
	ckpt := sampleCheckpoint()
	runner := stubRunner{
		result: agent.RunResult{ToolCalls: []agent.ToolCall{{ID: "new-id", Name: "other-tool", Arguments: []byte(`{}`)}}},
	}
	result, err := checkpoint.LiveReplay(ckpt, checkpoint.Overrides{}, agent.Agent{}, runner)
	require.NoError(t, err)
	require.NotNil(t, result.DivergedAt)
	assert.Equal(t, 0, *result.DivergedAt)
}

func TestForkContextAppendsToSystemMessage(t *testing.T) {
	ckpt := sampleCheckpoint()
	runner := stubRunner{result: agent.RunResult{}}
	forked, _, err := checkpoint.Fork(ckpt, checkpoint.ForkOptions{Type: checkpoint.ForkTypeContext, AdditionalContext: "extra rule", NewID: "ckpt-2"}, agent.Agent{}, runner)
	require.NoError(t, err)
	assert.Equal(t, "ckpt-1", forked.ForkedFrom)
	text := forked.Messages[0].Parts[0].(model.TextPart).Text
	assert.Contains(t, text, "extra rule")
}

func TestInmemStoreSaveGetList(t *testing.T) {
	store := inmem.New()
	c1 := sampleCheckpoint()
	c2 := sampleCheckpoint()
	c2.ID = "ckpt-2"
	c2.StepIndex = 2
	require.NoError(t, store.Save(c1))
	require.NoError(t, store.Save(c2))

	got, ok := store.Get("ckpt-1")
	require.True(t, ok)
	assert.Equal(t, c1.RunID, got.RunID)

	byRun := store.ListByRun("run-1")
	require.Len(t, byRun, 2)
	assert.Equal(t, 1, byRun[0].StepIndex)
	assert.Equal(t, 2, byRun[1].StepIndex)
}

func TestCompareTracesClassifiesSteps(t *testing.T) {
	t1 := agent.Trace{TraceID: "t1", Spans: []agent.Span{
		{Name: "tool.search", Status: agent.SpanStatusOK, Attributes: map[string]any{"tool.name": "search", "tool.arguments": `{"q":"x"}`}},
		{Name: "llm.chat", Status: agent.SpanStatusOK, Attributes: map[string]any{"output": "hello"}},
	}}
	t2 := agent.Trace{TraceID: "t2", Spans: []agent.Span{
		{Name: "tool.search", Status: agent.SpanStatusOK, Attributes: map[string]any{"tool.name": "search", "tool.arguments": `{"q":"y"}`}},
		{Name: "llm.chat", Status: agent.SpanStatusOK, Attributes: map[string]any{"output": "hi there"}},
	}}
	cmp := checkpoint.CompareTraces(t1, t2)
	require.Len(t, cmp.Steps, 2)
	assert.Equal(t, checkpoint.StepDifferent, cmp.Steps[0].Classification)
	assert.Equal(t, checkpoint.StepSimilar, cmp.Steps[1].Classification)
}

func TestCompareTracesOnlyInOne(t *testing.T) {
	t1 := agent.Trace{Spans: []agent.Span{{Name: "llm.chat", Status: agent.SpanStatusOK}}}
	t2 := agent.Trace{Spans: []agent.Span{
		{Name: "llm.chat", Status: agent.SpanStatusOK},
		{Name: "tool.search", Status: agent.SpanStatusOK},
	}}
	cmp := checkpoint.CompareTraces(t1, t2)
	require.Len(t, cmp.Steps, 2)
	assert.Equal(t, checkpoint.StepOnlyIn2, cmp.Steps[1].Classification)
}
