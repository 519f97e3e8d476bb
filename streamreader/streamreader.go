// Package streamreader consumes a model.Streamer's chunks, aggregates them
// into a single finalized response, and forwards text deltas to a caller
// callback in real time.
package streamreader

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/sovereignrun/agentcore/model"
)

// FinishReason records why generation stopped.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonLength    FinishReason = "length"
	FinishReasonError     FinishReason = "error"
)

// Result is the single synthesized response produced from a drained stream,
// equivalent to a non-streaming model.Response.
type Result struct {
	Content      string
	ToolCalls    []model.ToolCall
	Usage        model.TokenUsage
	FinishReason FinishReason
}

// Options configures a Read call.
type Options struct {
	// OnToken is invoked for each non-empty content delta as it arrives.
	OnToken func(token string)
	// OnToolCallDelta is invoked, best-effort, for incremental tool-call
	// payload fragments. Never affects the finalized tool call used for
	// dispatch.
	OnToolCallDelta func(delta model.ToolCallDelta)
	// CountInputTokens supplies the input token count when the stream never
	// reports usage; only output tokens use the char/4 heuristic. Required
	// for the fallback to be accurate; nil yields zero input tokens in that
	// fallback.
	CountInputTokens func() int
}

// Read drains streamer until io.EOF (or another terminal error), aggregating
// content, tool calls, and usage into a single Result.
func Read(streamer model.Streamer, opts Options) (Result, error) {
	var (
		contentBuf   []byte
		toolCalls    []model.ToolCall
		finishReason FinishReason
		usage        *model.TokenUsage
	)

	for {
		chunk, err := streamer.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, err
		}

		switch chunk.Type {
		case model.ChunkTypeText:
			if chunk.Message != nil {
				for _, part := range chunk.Message.Parts {
					if tp, ok := part.(model.TextPart); ok && tp.Text != "" {
						contentBuf = append(contentBuf, tp.Text...)
						if opts.OnToken != nil {
							opts.OnToken(tp.Text)
						}
					}
				}
			}
		case model.ChunkTypeToolCall:
			// A finalized tool call replaces the in-progress call with the
			// same ID, or is appended when no call has that ID yet.
			if chunk.ToolCall != nil {
				toolCalls = replaceOrAppendToolCall(toolCalls, *chunk.ToolCall)
			}
		case model.ChunkTypeToolCallDelta:
			if chunk.ToolCallDelta != nil && opts.OnToolCallDelta != nil {
				opts.OnToolCallDelta(*chunk.ToolCallDelta)
			}
		case model.ChunkTypeUsage:
			if chunk.UsageDelta != nil {
				usage = chunk.UsageDelta
			}
		case model.ChunkTypeStop:
			finishReason = mapFinishReason(chunk.StopReason, len(toolCalls) > 0)
			if chunk.UsageDelta != nil {
				usage = chunk.UsageDelta
			}
		}
	}

	if finishReason == "" {
		finishReason = mapFinishReason("", len(toolCalls) > 0)
	}

	final := Result{
		Content:      string(contentBuf),
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
	}
	if usage != nil {
		final.Usage = *usage
	} else {
		input := 0
		if opts.CountInputTokens != nil {
			input = opts.CountInputTokens()
		}
		output := (len(contentBuf) + 3) / 4
		final.Usage = model.TokenUsage{
			InputTokens:  input,
			OutputTokens: output,
			TotalTokens:  input + output,
		}
	}
	return final, nil
}

func replaceOrAppendToolCall(existing []model.ToolCall, next model.ToolCall) []model.ToolCall {
	for i, tc := range existing {
		if tc.ID != "" && tc.ID == next.ID {
			existing[i] = next
			return existing
		}
	}
	return append(existing, next)
}

func mapFinishReason(stopReason string, hasToolCalls bool) FinishReason {
	switch stopReason {
	case "stop":
		return FinishReasonStop
	case "tool_calls", "tool_use":
		return FinishReasonToolCalls
	case "length", "max_tokens":
		return FinishReasonLength
	case "error":
		return FinishReasonError
	default:
		if hasToolCalls {
			return FinishReasonToolCalls
		}
		return FinishReasonStop
	}
}

// MarshalResult is a convenience for logging/tracing a Result compactly.
func MarshalResult(r Result) ([]byte, error) {
	return json.Marshal(struct {
		Content      string             `json:"content"`
		ToolCalls    int                `json:"tool_calls"`
		FinishReason FinishReason       `json:"finish_reason"`
		Usage        model.TokenUsage   `json:"usage"`
	}{r.Content, len(r.ToolCalls), r.FinishReason, r.Usage})
}
