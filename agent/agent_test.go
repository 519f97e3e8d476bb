package agent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/tools"
)

func TestAgentEffectiveDefaults(t *testing.T) {
	var a agent.Agent
	assert.Equal(t, float32(agent.DefaultTemperature), a.EffectiveTemperature())
	assert.Equal(t, agent.DefaultMaxIterations, a.EffectiveMaxIterations())
	assert.Equal(t, agent.DefaultTimeout, a.EffectiveTimeout())

	a.Temperature = 0.2
	a.MaxIterations = 3
	a.Timeout = 5 * time.Second
	assert.Equal(t, float32(0.2), a.EffectiveTemperature())
	assert.Equal(t, 3, a.EffectiveMaxIterations())
	assert.Equal(t, 5*time.Second, a.EffectiveTimeout())
}

func TestAgentToolRegistrySnapshot(t *testing.T) {
	a := agent.Agent{
		Tools: []tools.Tool{
			{Name: "a", Execute: func(tools.Context, any) (any, error) { return nil, nil }},
			{Name: "b", Execute: func(tools.Context, any) (any, error) { return nil, nil }},
		},
	}
	reg, err := a.ToolRegistry()
	require.NoError(t, err)
	_, ok := reg.Get("a")
	assert.True(t, ok)
	_, ok = reg.Get("b")
	assert.True(t, ok)

	a.Tools[0] = tools.Tool{Name: "c", Execute: func(tools.Context, any) (any, error) { return nil, nil }}
	_, ok = reg.Get("a")
	assert.True(t, ok, "registry snapshot must not observe later agent mutation")
}

func TestRunOptionsDefaults(t *testing.T) {
	var o agent.RunOptions
	assert.True(t, o.UseMemoryOrDefault())
	assert.True(t, o.LoadHistoryOrDefault())
	assert.True(t, o.SaveHistoryOrDefault())

	f := false
	o.UseMemory = &f
	assert.False(t, o.UseMemoryOrDefault())
}

func TestToolResultIsError(t *testing.T) {
	ok := agent.ToolResult{Result: nil}
	assert.False(t, ok.IsError())
	bad := agent.ToolResult{Error: "boom"}
	assert.True(t, bad.IsError())
}
