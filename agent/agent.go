// Package agent defines the core domain types shared by every component of
// the execution core: the immutable Agent configuration, the per-run result
// and trace records, and the tool invocation/result pair that flows through
// the control loop. Components import this package rather than each other,
// matching the orchestrator's top-down control flow.
package agent

import (
	"encoding/json"
	"time"

	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/tools"
)

// Defaults mirror the external-interface defaults an Agent falls back to
// when its fields are left zero-valued.
const (
	DefaultTemperature   = 0.7
	DefaultMaxIterations = 10
	DefaultTimeout       = 120 * time.Second
)

// Agent is an immutable, named configuration the orchestrator can run. It is
// constructed once and shared read-only across runs.
type Agent struct {
	ID           string
	Name         string
	Model        string // "provider/model", e.g. "openai/gpt-4o"
	Instructions string
	Tools        []tools.Tool // ordered; names unique within the agent

	Temperature   float32
	TopP          float32
	MaxTokens     int
	StopSequences []string
	MaxIterations int
	Timeout       time.Duration

	// Provider, if set, overrides the provider parsed from Model.
	Provider string

	// CachePolicy, if set, populates model.Request.Cache when a run does not
	// supply one explicitly.
	CachePolicy *model.CacheOptions
}

// EffectiveTemperature returns Temperature, or DefaultTemperature when unset.
func (a Agent) EffectiveTemperature() float32 {
	if a.Temperature == 0 {
		return DefaultTemperature
	}
	return a.Temperature
}

// EffectiveMaxIterations returns MaxIterations or the default of 10.
func (a Agent) EffectiveMaxIterations() int {
	if a.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return a.MaxIterations
}

// EffectiveTimeout returns Timeout or the default of 120s.
func (a Agent) EffectiveTimeout() time.Duration {
	if a.Timeout <= 0 {
		return DefaultTimeout
	}
	return a.Timeout
}

// ToolRegistry snapshots the agent's tool list into a fresh Registry, as the
// orchestrator does at the start of every run so a run never observes
// concurrent mutation of the agent's tool set.
func (a Agent) ToolRegistry() (*tools.Registry, error) {
	r := tools.NewRegistry()
	for _, t := range a.Tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ToolCall is a single requested tool invocation, unique by ID within a run.
type ToolCall struct {
	ID        string
	Name      tools.Name
	Arguments json.RawMessage
}

// ToolResult is the outcome of dispatching a ToolCall. Exactly one of
// Result or Error is set: Result may legitimately be JSON null, so presence
// of Error (non-empty) is what distinguishes failure.
type ToolResult struct {
	CallID string
	Name   tools.Name
	Result any
	Error  string
}

// IsError reports whether this result represents a tool failure.
func (r ToolResult) IsError() bool { return r.Error != "" }

// SpanKind classifies the nature of a traced operation.
type SpanKind string

const (
	SpanKindInternal SpanKind = "internal"
	SpanKindClient   SpanKind = "client"
	SpanKindServer   SpanKind = "server"
	SpanKindProducer SpanKind = "producer"
	SpanKindConsumer SpanKind = "consumer"
)

// SpanStatus is the terminal status of a Span.
type SpanStatus string

const (
	SpanStatusOK      SpanStatus = "ok"
	SpanStatusError   SpanStatus = "error"
	SpanStatusUnset   SpanStatus = "unset"
)

// Span is one node of a trace tree describing a timed operation. A child's
// interval is always contained within its parent's; the root span of a run
// is named "agent.run".
type Span struct {
	ID        string
	TraceID   string
	ParentID  string
	Name      string
	Kind      SpanKind
	Status    SpanStatus
	StartTime time.Time
	EndTime   time.Time
	Attributes map[string]any
}

// Duration returns EndTime - StartTime.
func (s Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Trace is an ordered sequence of spans sharing a TraceID, rooted at the
// span named "agent.run" inserted at position 0.
type Trace struct {
	TraceID string
	Spans   []Span
}

// Usage tracks token consumption and derived cost for a run.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Cost         float64
	Duration     time.Duration
}

// RunResult is the immutable outcome of one orchestrator run.
type RunResult struct {
	Output    string
	RunID     string
	AgentID   string
	ThreadID  string
	// TurnID optionally groups this run's exchange within ThreadID for
	// callers that want per-turn UI grouping; it has no effect on control
	// flow.
	TurnID     string
	ModelUsed  string
	Usage      Usage
	ToolCalls  []ToolCall
	Messages   []*model.Message
	Trace      Trace
}

// RunOptions configures a single orchestrator run. Zero values fall back to
// the external-interface defaults.
type RunOptions struct {
	Input string
	Images []model.ImagePart
	Audio  []byte // transcribed upstream of the message builder when present

	Context map[string]any

	ThreadID string
	Timeout  time.Duration

	Stream bool

	OnToken      func(token string)
	OnToolCall   func(call ToolCall)
	OnToolResult func(result ToolResult)
	OnRunStart   func(runID string)
	OnRunComplete func(result *RunResult)
	OnRunError   func(err error, runID string)
	OnSpan       func(span Span)
	OnMemoryError func(err error)

	UseMemory         *bool // nil means true
	LoadHistory       *bool // nil means true
	SaveHistory       *bool // nil means true
	ParallelToolCalls bool

	AutoSelectModel bool
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// UseMemoryOrDefault returns UseMemory or the default of true.
func (o RunOptions) UseMemoryOrDefault() bool { return boolOr(o.UseMemory, true) }

// LoadHistoryOrDefault returns LoadHistory or the default of true.
func (o RunOptions) LoadHistoryOrDefault() bool { return boolOr(o.LoadHistory, true) }

// SaveHistoryOrDefault returns SaveHistory or the default of true.
func (o RunOptions) SaveHistoryOrDefault() bool { return boolOr(o.SaveHistory, true) }
