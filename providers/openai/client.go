// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API via github.com/openai/openai-go. It mirrors
// the shape of the Anthropic adapter: a thin translation layer between the
// module's provider-agnostic Request/Response and the provider SDK's wire
// types, with no control-flow logic of its own.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/tools"
)

// ChatClient captures the subset of the openai-go client used by the
// adapter, so tests can substitute a fake.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	NewStreaming(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) *sdk.ChatCompletionStream
}

// Options configures the OpenAI adapter.
type Options struct {
	// DefaultModel is used when Request.Model is empty.
	DefaultModel string
	// ReasoningEffort, when set, is forwarded as the reasoning_effort field
	// for models that support it (gpt-5, o-series).
	ReasoningEffort string
	MaxTokens       int
	Temperature     float64
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat         ChatClient
	defaultModel string
	reasoning    string
	maxTok       int
	temp         float64
}

// New builds an OpenAI-backed model client.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, defaultModel: modelID, reasoning: opts.ReasoningEffort, maxTok: opts.MaxTokens, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete renders a chat completion via the Chat Completions API.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, nameMap, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	comp, err := c.chat.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	return translateResponse(comp, nameMap), nil
}

// Stream invokes the streaming Chat Completions endpoint.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, nameMap, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = sdk.ChatCompletionStreamOptionsParam{IncludeUsage: sdk.Bool(true)}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai: chat completion stream: %w", err)
	}
	return newOpenAIStreamer(stream, nameMap), nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.ChatCompletionNewParams, map[string]string, error) {
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("openai: messages are required")
	}
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.defaultModel
	}
	toolList, canonToSan, sanToCanon, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := encodeMessages(req.Messages, canonToSan)
	if err != nil {
		return nil, nil, err
	}
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(modelID),
		Messages: msgs,
	}
	if len(toolList) > 0 {
		params.Tools = toolList
	}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		params.Temperature = param.NewOpt(t)
	}
	if maxTokens := c.effectiveMaxTokens(req.MaxTokens); maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}
	if c.reasoning != "" {
		params.ReasoningEffort = shared.ReasoningEffort(c.reasoning)
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(req.ToolChoice)
		if err != nil {
			return nil, nil, err
		}
		params.ToolChoice = tc
	}
	return &params, sanToCanon, nil
}

func (c *Client) effectiveMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return c.maxTok
}

func (c *Client) effectiveTemperature(requested float32) float64 {
	if requested > 0 {
		return float64(requested)
	}
	return c.temp
}

func encodeMessages(msgs []*model.Message, nameMap map[string]string) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		text := textOf(m)
		switch m.Role {
		case model.ConversationRoleSystem:
			if text != "" {
				out = append(out, sdk.SystemMessage(text))
			}
		case model.ConversationRoleUser:
			if text != "" {
				out = append(out, sdk.UserMessage(text))
			}
		case model.ConversationRoleAssistant:
			calls := toolUseCalls(m, nameMap)
			if text == "" && len(calls) == 0 {
				continue
			}
			msg := sdk.ChatCompletionAssistantMessageParam{}
			if text != "" {
				msg.Content.OfString = sdk.String(text)
			}
			msg.ToolCalls = calls
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		case model.ConversationRoleTool:
			out = append(out, sdk.ToolMessage(text, m.ToolCallID))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	return out, nil
}

func textOf(m *model.Message) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(model.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

func toolUseCalls(m *model.Message, nameMap map[string]string) []sdk.ChatCompletionMessageToolCallUnionParam {
	var calls []sdk.ChatCompletionMessageToolCallUnionParam
	for _, p := range m.Parts {
		v, ok := p.(model.ToolUsePart)
		if !ok {
			continue
		}
		sanitized, ok := nameMap[v.Name]
		if !ok || sanitized == "" {
			sanitized = v.Name
		}
		args, _ := json.Marshal(v.Input)
		calls = append(calls, sdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
				ID: v.ID,
				Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      sanitized,
					Arguments: string(args),
				},
			},
		})
	}
	return calls
}

func encodeTools(defs []*model.ToolDefinition) ([]sdk.ChatCompletionToolUnionParam, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil, nil
	}
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(defs))
	canonToSan := make(map[string]string, len(defs))
	sanToCanon := make(map[string]string, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		sanitized := sanitizeToolName(def.Name)
		if prev, ok := sanToCanon[sanitized]; ok && prev != def.Name {
			return nil, nil, nil, fmt.Errorf("openai: tool name %q sanitizes to %q which collides with %q", def.Name, sanitized, prev)
		}
		sanToCanon[sanitized] = def.Name
		canonToSan[def.Name] = sanitized

		params, err := toFunctionParameters(def.InputSchema)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("openai: tool %q schema: %w", def.Name, err)
		}
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        sanitized,
			Description: sdk.String(def.Description),
			Parameters:  params,
		}))
	}
	if len(out) == 0 {
		return nil, nil, nil, nil
	}
	return out, canonToSan, sanToCanon, nil
}

func toFunctionParameters(schema any) (sdk.FunctionParameters, error) {
	if schema == nil {
		return sdk.FunctionParameters{"type": "object", "properties": map[string]any{}}, nil
	}
	var raw json.RawMessage
	switch v := schema.(type) {
	case json.RawMessage:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	var out sdk.FunctionParameters
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeToolChoice(choice *model.ToolChoice) (sdk.ChatCompletionToolChoiceOptionUnionParam, error) {
	switch choice.Mode {
	case "", model.ToolChoiceModeAuto:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("auto")}, nil
	case model.ToolChoiceModeNone:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("none")}, nil
	case model.ToolChoiceModeAny:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("required")}, nil
	case model.ToolChoiceModeTool:
		if choice.Name == "" {
			return sdk.ChatCompletionToolChoiceOptionUnionParam{}, errors.New("openai: tool choice mode \"tool\" requires a tool name")
		}
		named := sdk.ChatCompletionNamedToolChoiceParam{
			Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{Name: sanitizeToolName(choice.Name)},
		}
		return sdk.ChatCompletionToolChoiceOptionUnionParam{OfChatCompletionNamedToolChoice: &named}, nil
	default:
		return sdk.ChatCompletionToolChoiceOptionUnionParam{}, fmt.Errorf("openai: unsupported tool choice mode %q", choice.Mode)
	}
}

func sanitizeToolName(in string) string {
	if isProviderSafeToolName(in) {
		return in
	}
	out := make([]rune, 0, len(in))
	for _, r := range in {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return string(out)
}

func isProviderSafeToolName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

func translateResponse(comp *sdk.ChatCompletion, nameMap map[string]string) *model.Response {
	resp := &model.Response{}
	if len(comp.Choices) == 0 {
		return resp
	}
	choice := comp.Choices[0]
	if text := choice.Message.Content; text != "" {
		resp.Content = append(resp.Content, model.Message{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: text}},
		})
	}
	for _, tc := range choice.Message.ToolCalls {
		name := tc.Function.Name
		if canonical, ok := nameMap[name]; ok {
			name = canonical
		}
		resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
			Name:    tools.Name(name),
			Payload: json.RawMessage(tc.Function.Arguments),
			ID:      tc.ID,
		})
	}
	resp.Usage = model.TokenUsage{
		InputTokens:  int(comp.Usage.PromptTokens),
		OutputTokens: int(comp.Usage.CompletionTokens),
		TotalTokens:  int(comp.Usage.TotalTokens),
	}
	resp.StopReason = string(choice.FinishReason)
	return resp
}
