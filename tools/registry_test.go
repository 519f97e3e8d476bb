package tools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/tools"
)

func echoTool(name tools.Name) tools.Tool {
	return tools.Tool{
		Name:        name,
		Description: "echoes its input",
		Execute: func(_ tools.Context, args any) (any, error) {
			return args, nil
		},
	}
}

func TestRegistryRegisterGet(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, tools.Name("echo"), got.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterRejectsInvalid(t *testing.T) {
	r := tools.NewRegistry()
	assert.Error(t, r.Register(tools.Tool{Name: ""}))
	assert.Error(t, r.Register(tools.Tool{Name: "no-exec"}))
}

func TestRegistryUnregister(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))
	r.Unregister("echo")
	_, ok := r.Get("echo")
	assert.False(t, ok)
}

func TestRegistryListSorted(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool("zeta")))
	require.NoError(t, r.Register(echoTool("alpha")))
	require.NoError(t, r.Register(echoTool("mid")))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, tools.Name("alpha"), list[0].Name)
	assert.Equal(t, tools.Name("mid"), list[1].Name)
	assert.Equal(t, tools.Name("zeta"), list[2].Name)
}

func TestRegistryFilterAllowDeny(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(echoTool("fs.read")))
	require.NoError(t, r.Register(echoTool("fs.write")))
	require.NoError(t, r.Register(echoTool("net.fetch")))

	filtered := r.Filter([]string{"fs.*"}, []string{"fs.write"})
	require.Len(t, filtered, 1)
	assert.Equal(t, tools.Name("fs.read"), filtered[0].Name)
}

func TestMatchPattern(t *testing.T) {
	assert.True(t, tools.MatchPattern("fs.*", "fs.read"))
	assert.False(t, tools.MatchPattern("fs.*", "net.fetch"))
	assert.True(t, tools.MatchPattern("exact", "exact"))
	assert.False(t, tools.MatchPattern("exact", "exactly"))
}
