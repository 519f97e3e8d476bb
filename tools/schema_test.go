package tools_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/tools"
)

func TestJSONSchemaValidatesRequiredFields(t *testing.T) {
	schema, err := tools.NewJSONSchema(map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"path": map[string]any{"type": "string"}},
		"required":             []any{"path"},
		"additionalProperties": false,
	})
	require.NoError(t, err)

	_, ok, err := schema.SafeParse(map[string]any{"path": "/tmp/x"})
	assert.True(t, ok)
	assert.NoError(t, err)

	_, ok, err = schema.SafeParse(map[string]any{})
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestJSONSchemaJSONSchemaRoundTrips(t *testing.T) {
	doc := map[string]any{"type": "object"}
	schema, err := tools.NewJSONSchema(doc)
	require.NoError(t, err)
	assert.Equal(t, doc, schema.JSONSchema())
}
