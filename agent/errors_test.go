package agent_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sovereignrun/agentcore/agent"
)

func TestErrorRetryableFromKind(t *testing.T) {
	e := agent.NewError(agent.KindLLMRateLimited, "provider rejected request")
	assert.True(t, e.Retryable)
}

func TestErrorRetryableFromMessage(t *testing.T) {
	e := agent.NewError(agent.KindToolExecutionFailed, "upstream returned 429")
	assert.True(t, e.Retryable)

	e2 := agent.NewError(agent.KindToolExecutionFailed, "division by zero")
	assert.False(t, e2.Retryable)
}

func TestErrorWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	e := agent.Wrap(agent.KindInternalError, cause)
	assert.ErrorIs(t, e, cause)
}

func TestErrorString(t *testing.T) {
	e := agent.NewError(agent.KindToolNotFound, "Tool not found: fs.read")
	assert.Equal(t, "tool.not_found: Tool not found: fs.read", e.Error())
}
