package messagebuilder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/memory/inmem"
	"github.com/sovereignrun/agentcore/messagebuilder"
	"github.com/sovereignrun/agentcore/model"
)

func TestBuildWithoutMemory(t *testing.T) {
	b := messagebuilder.New(nil, nil)
	a := agent.Agent{Instructions: "Be brief."}
	msgs, err := b.Build(context.Background(), a, agent.RunOptions{Input: "Hi"}, "", "", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.ConversationRoleSystem, msgs[0].Role)
	assert.Equal(t, model.ConversationRoleUser, msgs[1].Role)
}

func TestBuildWithMemoryLoadsHistory(t *testing.T) {
	store := inmem.New()
	b := messagebuilder.New(store, nil)
	a := agent.Agent{ID: "agent-1", Instructions: "Be brief."}

	ctx := context.Background()
	msgs, err := b.Build(ctx, a, agent.RunOptions{Input: "My name is Alex"}, "thread-1", "", nil)
	require.NoError(t, err)
	b.SaveEntry(ctx, "thread-1", msgs[len(msgs)-1], nil)
	b.SaveEntry(ctx, "thread-1", &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "Nice to meet you, Alex."}}}, nil)

	msgs2, err := b.Build(ctx, a, agent.RunOptions{Input: "What is my name?"}, "thread-1", "", nil)
	require.NoError(t, err)
	require.Len(t, msgs2, 4) // system, user1, assistant1, user2
}

func TestBuildLoadHistoryFalse(t *testing.T) {
	store := inmem.New()
	b := messagebuilder.New(store, nil)
	a := agent.Agent{ID: "agent-1", Instructions: "Be brief."}
	noHistory := false

	msgs, err := b.Build(context.Background(), a, agent.RunOptions{Input: "Hi", LoadHistory: &noHistory}, "thread-1", "", nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestEnrichMessagesWithInsightsCapsGuidance(t *testing.T) {
	b := messagebuilder.New(nil, nil)
	b.MaxGuidanceInsights = 1
	msgs := []*model.Message{{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: "base"}}}}
	b.EnrichMessagesWithInsights(msgs, []messagebuilder.Insight{
		{Text: "safety one", Tier: messagebuilder.TierSafety},
		{Text: "guidance one", Tier: messagebuilder.TierGuidance},
		{Text: "guidance two", Tier: messagebuilder.TierGuidance},
	})
	text := msgs[0].Parts[0].(model.TextPart).Text
	assert.Contains(t, text, "safety one")
	assert.Contains(t, text, "guidance one")
	assert.NotContains(t, text, "guidance two")
}
