package streamreader_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/streamreader"
)

type fakeStreamer struct {
	chunks []model.Chunk
	idx    int
}

func (f *fakeStreamer) Recv() (model.Chunk, error) {
	if f.idx >= len(f.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := f.chunks[f.idx]
	f.idx++
	return c, nil
}
func (f *fakeStreamer) Close() error             { return nil }
func (f *fakeStreamer) Metadata() map[string]any { return nil }

func TestReadAggregatesTextDeltas(t *testing.T) {
	s := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "Hel"}}}},
		{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "lo!"}}}},
		{Type: model.ChunkTypeStop, StopReason: "stop"},
	}}
	var tokens []string
	result, err := streamreader.Read(s, streamreader.Options{OnToken: func(tok string) { tokens = append(tokens, tok) }})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", result.Content)
	assert.Equal(t, streamreader.FinishReasonStop, result.FinishReason)
	assert.Equal(t, []string{"Hel", "lo!"}, tokens)
}

func TestReadReplacesInProgressToolCallList(t *testing.T) {
	s := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{ID: "1", Name: "a"}},
		{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{ID: "1", Name: "a", Payload: []byte(`{"x":1}`)}},
		{Type: model.ChunkTypeStop, StopReason: "tool_calls"},
	}}
	result, err := streamreader.Read(s, streamreader.Options{})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, `{"x":1}`, string(result.ToolCalls[0].Payload))
	assert.Equal(t, streamreader.FinishReasonToolCalls, result.FinishReason)
}

func TestReadFallsBackToHeuristicUsage(t *testing.T) {
	s := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeText, Message: &model.Message{Parts: []model.Part{model.TextPart{Text: "abcd"}}}},
		{Type: model.ChunkTypeStop, StopReason: "stop"},
	}}
	result, err := streamreader.Read(s, streamreader.Options{CountInputTokens: func() int { return 10 }})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 1, result.Usage.OutputTokens)
}

func TestReadUsesReportedUsage(t *testing.T) {
	s := &fakeStreamer{chunks: []model.Chunk{
		{Type: model.ChunkTypeStop, StopReason: "stop", UsageDelta: &model.TokenUsage{InputTokens: 5, OutputTokens: 7, TotalTokens: 12}},
	}}
	result, err := streamreader.Read(s, streamreader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 12, result.Usage.TotalTokens)
}
