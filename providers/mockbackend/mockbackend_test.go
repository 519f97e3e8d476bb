package mockbackend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/providers/mockbackend"
)

func TestClientReplaysScriptInOrder(t *testing.T) {
	c := mockbackend.New(
		mockbackend.Text("Hello!", "stop", 10, 5),
	)
	resp, err := c.Complete(context.Background(), &model.Request{})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	text, ok := resp.Content[0].Parts[0].(model.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Hello!", text.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, 1, c.Calls())
}

func TestClientExhaustsScript(t *testing.T) {
	c := mockbackend.New(mockbackend.Text("Hi", "stop", 1, 1))
	_, err := c.Complete(context.Background(), &model.Request{})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), &model.Request{})
	assert.ErrorIs(t, err, mockbackend.ErrScriptExhausted)
}

func TestClientStreamUnsupported(t *testing.T) {
	c := mockbackend.New()
	_, err := c.Stream(context.Background(), &model.Request{})
	assert.ErrorIs(t, err, model.ErrStreamingUnsupported)
}
