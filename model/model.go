// Package model defines the provider-agnostic message and streaming types
// shared by the orchestrator core and the peripheral provider adapters. It
// models messages as typed parts (text, image, document, citations,
// thinking, tool use/result) plus conversation roles.
package model

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sovereignrun/agentcore/tools"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	// ConversationRoleSystem is the role for system messages.
	ConversationRoleSystem ConversationRole = "system"
	// ConversationRoleUser is the role for user messages.
	ConversationRoleUser ConversationRole = "user"
	// ConversationRoleAssistant is the role for assistant messages.
	ConversationRoleAssistant ConversationRole = "assistant"
	// ConversationRoleTool is the role for a message folding a tool result
	// back into the transcript. ToolCallID and ToolName identify which
	// assistant tool-use declaration this message answers.
	ConversationRoleTool ConversationRole = "tool"
)

type (
	// Part is a marker interface implemented by all message parts.
	Part interface {
		isPart()
	}

	// ImageFormat identifies the on-wire format of an image part.
	ImageFormat string

	// DocumentFormat identifies the on-wire format of a document part.
	DocumentFormat string

	// TextPart is a plain text content block in a message.
	TextPart struct {
		Text string
	}

	// ImagePart carries image bytes attached to a user message.
	ImagePart struct {
		Format ImageFormat
		Bytes  []byte
	}

	// DocumentPart carries document content attached to a user message.
	// Exactly one of Bytes, Text, Chunks, or URI is expected to be set.
	DocumentPart struct {
		Name    string
		Format  DocumentFormat
		Bytes   []byte
		Text    string
		Chunks  []string
		URI     string
		Context string
		Cite    bool
	}

	// CitationsPart is generated content paired with citation metadata.
	CitationsPart struct {
		Text      string
		Citations []Citation
	}

	// Citation links generated content back to a location in a source document.
	Citation struct {
		Title         string
		Source        string
		Location      CitationLocation
		SourceContent []string
	}

	// CitationLocation identifies where cited content can be found. Exactly
	// one of the three fields should be set when present.
	CitationLocation struct {
		DocumentChar  *DocumentCharLocation
		DocumentChunk *DocumentChunkLocation
		DocumentPage  *DocumentPageLocation
	}

	// DocumentCharLocation identifies a character span within a document.
	DocumentCharLocation struct {
		DocumentIndex int
		Start         int
		End           int
	}

	// DocumentChunkLocation identifies a chunk range within a document.
	DocumentChunkLocation struct {
		DocumentIndex int
		Start         int
		End           int
	}

	// DocumentPageLocation identifies a page number within a document.
	DocumentPageLocation struct {
		DocumentIndex int
		Start         int
		End           int
	}

	// ThinkingPart represents provider-issued reasoning content. Callers
	// treat it as opaque and surface it according to UI policy.
	ThinkingPart struct {
		Text      string
		Signature string
		Redacted  []byte
		Index     int
		Final     bool
	}

	// ToolUsePart declares a tool invocation by the assistant.
	ToolUsePart struct {
		ID    string
		Name  string
		Input any
	}

	// ToolResultPart carries a tool result attached to a later user message
	// so the model can read it in subsequent turns.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// CacheCheckpointPart marks a prompt-cache boundary in a message.
	// Providers that do not support caching ignore this part.
	CacheCheckpointPart struct{}

	// Message is a single chat message: an ordered list of typed parts plus
	// optional application metadata.
	Message struct {
		Role ConversationRole
		Parts []Part
		Meta map[string]any

		// ToolCallID and ToolName are set only on ConversationRoleTool
		// messages, correlating the result back to the assistant's tool-use
		// declaration.
		ToolCallID string
		ToolName   string
	}

	// ToolDefinition describes a tool exposed to the model: name,
	// description, and JSON Schema input shape.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a requested tool invocation from the model.
	ToolCall struct {
		Name    tools.Name
		Payload json.RawMessage
		ID      string
	}

	// ToolCallDelta is an incremental tool-call payload fragment streamed by
	// providers while still constructing the full tool input JSON. This is a
	// best-effort UX signal; the canonical payload is still ToolCall.Payload.
	ToolCallDelta struct {
		Name  tools.Name
		ID    string
		Delta string
	}

	// ToolChoiceMode controls how the model uses tools for a request.
	ToolChoiceMode string

	// ToolChoice configures optional tool-use behavior for a Request.
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string
	}

	// TokenUsage tracks token counts for a model call.
	TokenUsage struct {
		InputTokens      int
		OutputTokens     int
		TotalTokens      int
		CacheReadTokens  int
		CacheWriteTokens int
	}

	// Request captures inputs for a model invocation.
	Request struct {
		RunID       string
		Model       string
		ModelClass  ModelClass
		Messages    []*Message
		Temperature float32
		Tools       []*ToolDefinition
		ToolChoice  *ToolChoice
		MaxTokens   int
		Stream      bool
		Thinking    *ThinkingOptions
		Cache       *CacheOptions
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		Content    []Message
		ToolCalls  []ToolCall
		Usage      TokenUsage
		StopReason string
	}

	// Chunk is a streaming event from the model.
	Chunk struct {
		Type          string
		Message       *Message
		Thinking      string
		ToolCall      *ToolCall
		ToolCallDelta *ToolCallDelta
		UsageDelta    *TokenUsage
		StopReason    string
	}

	// ThinkingOptions configures provider thinking/reasoning behavior.
	ThinkingOptions struct {
		Enable       bool
		Interleaved  bool
		BudgetTokens int
	}

	// CacheOptions configures prompt caching behavior for a request. When
	// Request.Cache is nil the orchestrator may populate it from an
	// agent-level cache policy; an explicit Request.Cache always wins.
	CacheOptions struct {
		AfterSystem bool
		AfterTools  bool
	}

	// ModelClass identifies a model family; providers map these to concrete
	// model identifiers.
	ModelClass string

	// Client is the provider-agnostic model client.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
		Stream(ctx context.Context, req *Request) (Streamer, error)
	}

	// Streamer delivers incremental model output. Callers must drain the
	// stream until Recv returns io.EOF or another terminal error, then call
	// Close.
	Streamer interface {
		Recv() (Chunk, error)
		Close() error
		Metadata() map[string]any
	}
)

const (
	// ToolChoiceModeAuto lets the provider decide whether to call tools.
	ToolChoiceModeAuto ToolChoiceMode = "auto"
	// ToolChoiceModeNone disables tool use for the request.
	ToolChoiceModeNone ToolChoiceMode = "none"
	// ToolChoiceModeAny forces the model to request at least one tool.
	ToolChoiceModeAny ToolChoiceMode = "any"
	// ToolChoiceModeTool forces the model to request the named tool.
	ToolChoiceModeTool ToolChoiceMode = "tool"
)

const (
	// ChunkTypeText identifies a chunk carrying assistant text.
	ChunkTypeText = "text"
	// ChunkTypeToolCall identifies a chunk carrying a finalized tool invocation.
	ChunkTypeToolCall = "tool_call"
	// ChunkTypeToolCallDelta identifies a chunk carrying an incremental
	// tool-call input JSON fragment.
	ChunkTypeToolCallDelta = "tool_call_delta"
	// ChunkTypeThinking identifies a chunk carrying thinking content.
	ChunkTypeThinking = "thinking"
	// ChunkTypeUsage identifies a chunk carrying a usage delta.
	ChunkTypeUsage = "usage"
	// ChunkTypeStop identifies the terminal chunk carrying a stop reason.
	ChunkTypeStop = "stop"
)

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatGIF  ImageFormat = "gif"
	ImageFormatWEBP ImageFormat = "webp"
)

const (
	DocumentFormatPDF  DocumentFormat = "pdf"
	DocumentFormatCSV  DocumentFormat = "csv"
	DocumentFormatDOC  DocumentFormat = "doc"
	DocumentFormatDOCX DocumentFormat = "docx"
	DocumentFormatXLS  DocumentFormat = "xls"
	DocumentFormatXLSX DocumentFormat = "xlsx"
	DocumentFormatHTML DocumentFormat = "html"
	DocumentFormatTXT  DocumentFormat = "txt"
	DocumentFormatMD   DocumentFormat = "md"
)

const (
	// ModelClassHighReasoning selects a high-reasoning model family.
	ModelClassHighReasoning ModelClass = "high-reasoning"
	// ModelClassDefault selects the default model family.
	ModelClassDefault ModelClass = "default"
	// ModelClassSmall selects a small/cheap model family.
	ModelClassSmall ModelClass = "small"
	// ModelClassLocal selects a locally hosted model family with zero
	// marginal cost per the cost estimator's local-runner rule.
	ModelClassLocal ModelClass = "local"
)

// ErrStreamingUnsupported indicates the provider does not support streaming.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting after exhausting any configured retries.
var ErrRateLimited = errors.New("model: rate limited")

func (TextPart) isPart()            {}
func (ImagePart) isPart()           {}
func (DocumentPart) isPart()        {}
func (CitationsPart) isPart()       {}
func (ThinkingPart) isPart()        {}
func (ToolUsePart) isPart()         {}
func (ToolResultPart) isPart()      {}
func (CacheCheckpointPart) isPart() {}
