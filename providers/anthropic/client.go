// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API. It translates agentcore requests into
// anthropic.Message calls using github.com/anthropics/anthropic-sdk-go and
// maps responses (text, tools, thinking, usage) back into the module's
// provider-agnostic message and tool-call structures.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/tools"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by
	// the adapter. It is satisfied by *sdk.MessageService so callers can pass
	// either a real client or a mock in tests.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
		NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
	}

	// Options configures optional Anthropic adapter behavior.
	Options struct {
		// DefaultModel is the Claude model identifier used when
		// model.Request.Model is empty.
		DefaultModel string

		// HighModel is used when Request.ModelClass is ModelClassHighReasoning
		// and Model is empty.
		HighModel string

		// SmallModel is used when Request.ModelClass is ModelClassSmall and
		// Model is empty.
		SmallModel string

		// MaxTokens sets the default completion cap when a request does not
		// specify MaxTokens.
		MaxTokens int

		// Temperature is used when a request does not specify Temperature.
		Temperature float64

		// ThinkingBudget defines the default thinking token budget when
		// thinking is enabled but Request.Thinking.BudgetTokens is unset.
		ThinkingBudget int64
	}

	// Client implements model.Client on top of Anthropic Claude Messages.
	Client struct {
		msg          MessagesClient
		defaultModel string
		highModel    string
		smallModel   string
		maxTok       int
		temp         float64
		think        int64
	}

	// toolNames is the bidirectional mapping between the canonical tool names
	// this module uses and the sanitized names sent over the wire to
	// Anthropic, which only accepts a restricted character set.
	toolNames struct {
		canonToSan map[string]string
		sanToCanon map[string]string
	}
)

// New builds an Anthropic-backed model client from the provided Anthropic
// Messages client and configuration options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
		think:        opts.ThinkingBudget,
	}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client,
// reading ANTHROPIC_API_KEY and related defaults from the environment via
// sdk.DefaultClientOptions.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request and translates the
// response into this module's Response shape.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, names, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg, names)
}

// Stream invokes Messages.NewStreaming and adapts incremental events into
// model.Chunks.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, names, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic: messages.new stream: %w", err)
	}
	return newAnthropicStreamer(ctx, stream, names.sanToCanon), nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, *toolNames, error) {
	if len(req.Messages) == 0 {
		return nil, nil, errors.New("anthropic: messages are required")
	}
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, nil, errors.New("anthropic: model identifier is required")
	}
	names, toolList, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}
	enc := newMessageEncoder(names.canonToSan)
	msgs, system, err := enc.encode(req.Messages)
	if err != nil {
		return nil, nil, err
	}
	maxTokens := c.effectiveMaxTokens(req.MaxTokens)
	if maxTokens <= 0 {
		return nil, nil, errors.New("anthropic: max_tokens must be positive")
	}

	params := &sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(toolList) > 0 {
		params.Tools = toolList
	}
	if t := c.effectiveTemperature(req.Temperature); t > 0 {
		params.Temperature = sdk.Float(t)
	}
	if err := applyThinking(params, req, maxTokens, c.think); err != nil {
		return nil, nil, err
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(req.ToolChoice, names.canonToSan, req.Tools)
		if err != nil {
			return nil, nil, err
		}
		params.ToolChoice = tc
	}
	return params, names, nil
}

func applyThinking(params *sdk.MessageNewParams, req *model.Request, maxTokens int, defaultBudget int64) error {
	if req.Thinking == nil || !req.Thinking.Enable {
		return nil
	}
	budget := req.Thinking.BudgetTokens
	if budget <= 0 {
		budget = int(defaultBudget)
	}
	if budget <= 0 {
		return errors.New("anthropic: thinking budget is required when thinking is enabled")
	}
	if budget >= maxTokens {
		return fmt.Errorf("anthropic: thinking budget %d must be less than max_tokens %d", budget, maxTokens)
	}
	params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	return nil
}

// resolveModelID decides which concrete model ID to use based on
// Request.Model and Request.ModelClass, falling back to the default model.
func (c *Client) resolveModelID(req *model.Request) string {
	if s := req.Model; s != "" {
		return s
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
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

// messageEncoder translates the module's provider-agnostic messages into
// Anthropic content blocks, resolving tool_use names against canonToSan as
// it goes.
type messageEncoder struct {
	canonToSan map[string]string
}

func newMessageEncoder(canonToSan map[string]string) *messageEncoder {
	return &messageEncoder{canonToSan: canonToSan}
}

func (e *messageEncoder) encode(msgs []*model.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, len(msgs))

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == model.ConversationRoleSystem {
			system = append(system, e.encodeSystemBlocks(m.Parts)...)
			continue
		}
		blocks, err := e.encodeParts(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		wrapped, err := wrapMessage(m.Role, blocks)
		if err != nil {
			return nil, nil, err
		}
		conversation = append(conversation, wrapped)
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func (e *messageEncoder) encodeSystemBlocks(parts []model.Part) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, 0, len(parts))
	for _, p := range parts {
		if v, ok := p.(model.TextPart); ok && v.Text != "" {
			out = append(out, sdk.TextBlockParam{Text: v.Text})
		}
	}
	return out
}

func (e *messageEncoder) encodeParts(parts []model.Part) ([]sdk.ContentBlockParamUnion, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		block, ok, err := e.encodePart(part)
		if err != nil {
			return nil, err
		}
		if ok {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

// encodePart translates a single part. ok is false for parts that contribute
// nothing to the wire payload (empty text, or provider-specific parts such as
// thinking/cache-checkpoint markers that Anthropic's adapter does not
// re-encode).
func (e *messageEncoder) encodePart(part model.Part) (block sdk.ContentBlockParamUnion, ok bool, err error) {
	switch v := part.(type) {
	case model.TextPart:
		if v.Text == "" {
			return block, false, nil
		}
		return sdk.NewTextBlock(v.Text), true, nil
	case model.ToolUsePart:
		if v.Name == "" {
			return block, false, errors.New("anthropic: tool_use part missing name")
		}
		sanitized, found := e.canonToSan[v.Name]
		if !found || sanitized == "" {
			sanitized = sanitizeToolName(v.Name)
		}
		return sdk.NewToolUseBlock(v.ID, v.Input, sanitized), true, nil
	case model.ToolResultPart:
		return encodeToolResult(v), true, nil
	default:
		return block, false, nil
	}
}

func wrapMessage(role model.ConversationRole, blocks []sdk.ContentBlockParamUnion) (sdk.MessageParam, error) {
	switch role {
	case model.ConversationRoleUser, model.ConversationRoleTool:
		return sdk.NewUserMessage(blocks...), nil
	case model.ConversationRoleAssistant:
		return sdk.NewAssistantMessage(blocks...), nil
	default:
		return sdk.MessageParam{}, fmt.Errorf("anthropic: unsupported message role %q", role)
	}
}

func encodeToolResult(v model.ToolResultPart) sdk.ContentBlockParamUnion {
	var content string
	switch c := v.Content.(type) {
	case nil:
		content = ""
	case string:
		content = c
	case []byte:
		content = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError)
}

func encodeTools(defs []*model.ToolDefinition) (*toolNames, []sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return &toolNames{}, nil, nil
	}
	names := &toolNames{
		canonToSan: make(map[string]string, len(defs)),
		sanToCanon: make(map[string]string, len(defs)),
	}
	toolList := make([]sdk.ToolUnionParam, 0, len(defs))

	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		sanitized := sanitizeToolName(def.Name)
		if prev, taken := names.sanToCanon[sanitized]; taken && prev != def.Name {
			return nil, nil, fmt.Errorf("anthropic: tool name %q sanitizes to %q which collides with %q", def.Name, sanitized, prev)
		}
		names.sanToCanon[sanitized] = def.Name
		names.canonToSan[def.Name] = sanitized

		schema, err := toolInputSchema(def.InputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, sanitized)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		toolList = append(toolList, u)
	}
	if len(toolList) == 0 {
		return &toolNames{}, nil, nil
	}
	return names, toolList, nil
}

// toolInputSchema decodes a tool's declared input schema (a json.RawMessage
// or any JSON-marshalable value) into the ExtraFields map Anthropic expects,
// defaulting a missing top-level "type" to "object" since every tool schema
// this module produces describes an object of named arguments.
func toolInputSchema(schema any) (sdk.ToolInputSchemaParam, error) {
	if schema == nil {
		return sdk.ToolInputSchemaParam{}, nil
	}
	raw, ok := schema.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(schema)
		if err != nil {
			return sdk.ToolInputSchemaParam{}, err
		}
		raw = data
	}
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	if _, hasType := fields["type"]; !hasType {
		fields["type"] = "object"
	}
	return sdk.ToolInputSchemaParam{ExtraFields: fields}, nil
}

// toolChoiceBuilder constructs the wire representation for one
// model.ToolChoiceMode.
type toolChoiceBuilder func(choice *model.ToolChoice, canonToSan map[string]string, defs []*model.ToolDefinition) (sdk.ToolChoiceUnionParam, error)

var toolChoiceBuilders = map[model.ToolChoiceMode]toolChoiceBuilder{
	model.ToolChoiceModeNone: func(*model.ToolChoice, map[string]string, []*model.ToolDefinition) (sdk.ToolChoiceUnionParam, error) {
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	},
	model.ToolChoiceModeAny: func(*model.ToolChoice, map[string]string, []*model.ToolDefinition) (sdk.ToolChoiceUnionParam, error) {
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	},
	model.ToolChoiceModeTool: buildNamedToolChoice,
}

func encodeToolChoice(choice *model.ToolChoice, canonToSan map[string]string, defs []*model.ToolDefinition) (sdk.ToolChoiceUnionParam, error) {
	if choice == nil || choice.Mode == "" || choice.Mode == model.ToolChoiceModeAuto {
		return sdk.ToolChoiceUnionParam{}, nil
	}
	build, ok := toolChoiceBuilders[choice.Mode]
	if !ok {
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropic: unsupported tool choice mode %q", choice.Mode)
	}
	return build(choice, canonToSan, defs)
}

func buildNamedToolChoice(choice *model.ToolChoice, canonToSan map[string]string, defs []*model.ToolDefinition) (sdk.ToolChoiceUnionParam, error) {
	if choice.Name == "" {
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropic: tool choice mode %q requires a tool name", choice.Mode)
	}
	if !hasToolDefinition(defs, choice.Name) {
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropic: tool choice name %q does not match any tool", choice.Name)
	}
	sanitized, ok := canonToSan[choice.Name]
	if !ok || sanitized == "" {
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropic: tool choice name %q does not match any tool", choice.Name)
	}
	return sdk.ToolChoiceParamOfTool(sanitized), nil
}

func hasToolDefinition(defs []*model.ToolDefinition, name string) bool {
	for _, def := range defs {
		if def != nil && def.Name == name {
			return true
		}
	}
	return false
}

// sanitizeToolName maps a tool identifier to the character set Anthropic
// tool names accept: letters, digits, '_' and '-', capped at 64 runes. It
// validates and rewrites in a single pass, returning the input unchanged
// when it is already within the accepted set.
func sanitizeToolName(in string) string {
	var buf bytes.Buffer
	clean := true
	count := 0
	for _, r := range in {
		if count >= 64 {
			clean = false
			break
		}
		count++
		if isToolNameRune(r) {
			buf.WriteRune(r)
			continue
		}
		clean = false
		buf.WriteRune('_')
	}
	if clean {
		return in
	}
	return buf.String()
}

func isToolNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return err != nil && errors.Is(err, model.ErrRateLimited)
}

func translateResponse(msg *sdk.Message, names *toolNames) (*model.Response, error) {
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}
	resp := &model.Response{}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Content = append(resp.Content, model.Message{
				Role:  model.ConversationRoleAssistant,
				Parts: []model.Part{model.TextPart{Text: block.Text}},
			})
		case "tool_use":
			name := block.Name
			if canonical, ok := names.sanToCanon[name]; ok {
				name = canonical
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				Name:    tools.Name(name),
				Payload: block.Input,
				ID:      block.ID,
			})
		}
	}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 || u.CacheReadInputTokens != 0 || u.CacheCreationInputTokens != 0 {
		resp.Usage = model.TokenUsage{
			InputTokens:      int(u.InputTokens),
			OutputTokens:     int(u.OutputTokens),
			TotalTokens:      int(u.InputTokens + u.OutputTokens),
			CacheReadTokens:  int(u.CacheReadInputTokens),
			CacheWriteTokens: int(u.CacheCreationInputTokens),
		}
	}
	resp.StopReason = string(msg.StopReason)
	return resp, nil
}
