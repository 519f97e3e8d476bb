// Package mockbackend provides a deterministic model.Client used by the
// reference CLI's demo mode and by integration tests that need byte-
// identical transcripts across runs without a live provider.
package mockbackend

import (
	"context"
	"errors"
	"sync"

	"github.com/sovereignrun/agentcore/model"
)

// Turn is one scripted model.Response to hand back on the Nth Complete call.
type Turn struct {
	Response *model.Response
	Err      error
}

// Client is a scriptable model.Client: each call to Complete returns the
// next Turn in the script, in order. Streaming is not supported; callers
// that need chunked output should drive the core with streamreader disabled
// for this backend.
type Client struct {
	mu     sync.Mutex
	script []Turn
	calls  int
}

// New builds a mock client that replays the given script in order.
func New(script ...Turn) *Client {
	return &Client{script: script}
}

// Text is a convenience constructor for a one-shot Turn carrying a plain
// text assistant response.
func Text(content, stopReason string, inputTokens, outputTokens int) Turn {
	return Turn{Response: &model.Response{
		Content: []model.Message{{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: content}},
		}},
		StopReason: stopReason,
		Usage: model.TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	}}
}

// ToolCalls is a convenience constructor for a Turn that asks the orchestrator
// to dispatch the given tool calls.
func ToolCalls(calls []model.ToolCall, inputTokens, outputTokens int) Turn {
	return Turn{Response: &model.Response{
		ToolCalls:  calls,
		StopReason: "tool_calls",
		Usage: model.TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	}}
}

// ErrScriptExhausted is returned once more calls are made than the script
// has turns for.
var ErrScriptExhausted = errors.New("mockbackend: script exhausted")

// Complete returns the next scripted turn.
func (c *Client) Complete(_ context.Context, _ *model.Request) (*model.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.script) {
		return nil, ErrScriptExhausted
	}
	turn := c.script[c.calls]
	c.calls++
	if turn.Err != nil {
		return nil, turn.Err
	}
	return turn.Response, nil
}

// Stream is unsupported; the mock backend only drives non-streaming runs.
func (c *Client) Stream(_ context.Context, _ *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

// Calls reports how many Complete calls have been served so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
