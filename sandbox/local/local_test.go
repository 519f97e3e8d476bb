package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/sandbox"
	"github.com/sovereignrun/agentcore/sandbox/local"
)

func TestLocalSandboxExecuteCommand(t *testing.T) {
	s := local.New()
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.IsAvailable(ctx))

	result, err := s.Execute(ctx, sandbox.Request{Kind: sandbox.KindCommand, Command: "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
}

func TestLocalSandboxExecuteCommandNonZeroExit(t *testing.T) {
	s := local.New()
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	result, err := s.Execute(ctx, sandbox.Request{Kind: sandbox.KindCommand, Command: "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestLocalSandboxUnavailableBeforeInitialize(t *testing.T) {
	s := local.New()
	assert.False(t, s.IsAvailable(context.Background()))
}
