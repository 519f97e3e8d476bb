package openai

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	sdk "github.com/openai/openai-go/v2"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/tools"
)

// openaiStreamer adapts an OpenAI Chat Completions streaming response to
// the model.Streamer interface.
type openaiStreamer struct {
	stream *sdk.ChatCompletionStream

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error

	metaMu   sync.RWMutex
	metadata map[string]any

	nameMap map[string]string

	done chan struct{}
}

func newOpenAIStreamer(stream *sdk.ChatCompletionStream, nameMap map[string]string) model.Streamer {
	s := &openaiStreamer{
		stream:  stream,
		chunks:  make(chan model.Chunk, 32),
		nameMap: nameMap,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *openaiStreamer) Recv() (model.Chunk, error) {
	chunk, ok := <-s.chunks
	if ok {
		return chunk, nil
	}
	if err := s.err(); err != nil {
		return model.Chunk{}, err
	}
	return model.Chunk{}, io.EOF
}

func (s *openaiStreamer) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.stream.Close()
}

func (s *openaiStreamer) Metadata() map[string]any {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	if len(s.metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

func (s *openaiStreamer) run() {
	defer close(s.chunks)
	defer s.stream.Close()

	calls := make(map[int64]*toolCallAccumulator)
	var order []int64

	for s.stream.Next() {
		select {
		case <-s.done:
			s.setErr(context.Canceled)
			return
		default:
		}

		chunk := s.stream.Current()
		if chunk.Usage.TotalTokens != 0 {
			usage := model.TokenUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
			s.recordUsage(usage)
			if err := s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}); err != nil {
				s.setErr(err)
				return
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta
		if delta.Content != "" {
			if err := s.emit(model.Chunk{
				Type:    model.ChunkTypeText,
				Message: &model.Message{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: delta.Content}}},
			}); err != nil {
				s.setErr(err)
				return
			}
		}
		for _, tc := range delta.ToolCalls {
			acc, ok := calls[tc.Index]
			if !ok {
				name := tc.Function.Name
				if canonical, ok := s.nameMap[name]; ok {
					name = canonical
				}
				acc = &toolCallAccumulator{id: tc.ID, name: name}
				calls[tc.Index] = acc
				order = append(order, tc.Index)
			}
			if tc.Function.Arguments != "" {
				acc.args.WriteString(tc.Function.Arguments)
				if err := s.emit(model.Chunk{
					Type:          model.ChunkTypeToolCallDelta,
					ToolCallDelta: &model.ToolCallDelta{Name: tools.Name(acc.name), ID: acc.id, Delta: tc.Function.Arguments},
				}); err != nil {
					s.setErr(err)
					return
				}
			}
		}
		if choice.FinishReason != "" {
			for _, idx := range order {
				acc := calls[idx]
				if err := s.emit(model.Chunk{
					Type:     model.ChunkTypeToolCall,
					ToolCall: &model.ToolCall{Name: tools.Name(acc.name), Payload: acc.payload(), ID: acc.id},
				}); err != nil {
					s.setErr(err)
					return
				}
			}
			calls = make(map[int64]*toolCallAccumulator)
			order = nil
			if err := s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: string(choice.FinishReason)}); err != nil {
				s.setErr(err)
				return
			}
		}
	}
	s.setErr(s.stream.Err())
}

func (s *openaiStreamer) emit(chunk model.Chunk) error {
	select {
	case <-s.done:
		return context.Canceled
	case s.chunks <- chunk:
		return nil
	}
}

func (s *openaiStreamer) recordUsage(usage model.TokenUsage) {
	s.metaMu.Lock()
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata["usage"] = usage
	s.metaMu.Unlock()
}

func (s *openaiStreamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *openaiStreamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

type toolCallAccumulator struct {
	id   string
	name string
	args strings.Builder
}

func (a *toolCallAccumulator) payload() json.RawMessage {
	raw := a.args.String()
	if raw == "" {
		raw = "{}"
	}
	return json.RawMessage(raw)
}
