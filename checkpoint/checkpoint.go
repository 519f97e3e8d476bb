// Package checkpoint implements time-travel checkpointing, replay, forking,
// and trace comparison over a run's step-by-step state.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/model"
)

// ForkType records how a forked checkpoint's transcript was altered
// relative to its parent.
type ForkType string

const (
	ForkTypePlain   ForkType = "plain"
	ForkTypeContext ForkType = "context"
	ForkTypeInput   ForkType = "input"
	ForkTypeMocked  ForkType = "mocked"
)

// Checkpoint is a self-contained snapshot of a run at a numbered step: it
// carries everything needed to replay or fork without consulting any other
// state.
type Checkpoint struct {
	ID               string
	TraceID          string
	RunID            string
	AgentID          string
	StepIndex        int
	Messages         []*model.Message
	ToolResults      map[string]any // callID -> value
	PendingToolCalls []agent.ToolCall
	Label            string
	CreatedAt        time.Time
	Metadata         map[string]any
	ForkedFrom       string
	ForkType         ForkType
}

// Store persists and retrieves checkpoints. Checkpoints, once saved, are
// immutable.
type Store interface {
	Save(ckpt Checkpoint) error
	Get(id string) (Checkpoint, bool)
	ListByRun(runID string) []Checkpoint
	ListByTrace(traceID string) []Checkpoint
}

// Overrides carries caller-supplied modifications applied when
// reconstructing a transcript from a checkpoint, for both deterministic and
// live replay.
type Overrides struct {
	MessageEdits map[int]*model.Message // message index -> replacement message
	ToolResults  map[string]any         // callID -> override value
}

// ReplayResult is the outcome of deterministic or live replay.
type ReplayResult struct {
	Result         agent.RunResult
	ReplayedFrom   string
	OriginalTraceID string
	NewTraceID     string // set only for live replay
	StepsReplayed  int
	StepsExecuted  int
	DivergedAt     *int // nil means no divergence (or deterministic replay, which never runs new work)
}

func rebuildTranscript(ckpt Checkpoint, overrides Overrides) []*model.Message {
	msgs := make([]*model.Message, len(ckpt.Messages))
	copy(msgs, ckpt.Messages)
	for idx, replacement := range overrides.MessageEdits {
		if idx >= 0 && idx < len(msgs) {
			msgs[idx] = replacement
		}
	}
	for i, m := range msgs {
		if m == nil || m.Role != model.ConversationRoleTool {
			continue
		}
		v, ok := overrides.ToolResults[m.ToolCallID]
		if !ok {
			continue
		}
		content, _ := json.Marshal(v)
		replaced := *m
		replaced.Parts = []model.Part{model.TextPart{Text: string(content)}}
		msgs[i] = &replaced
	}
	return msgs
}

func lastAssistantText(msgs []*model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.ConversationRoleAssistant {
			continue
		}
		for _, part := range msgs[i].Parts {
			if tp, ok := part.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

// DeterministicReplay rebuilds the transcript from ckpt (optionally
// overlaying message edits and tool-result overrides) and synthesizes a
// RunResult with zero new backend work.
func DeterministicReplay(ckpt Checkpoint, overrides Overrides) ReplayResult {
	msgs := rebuildTranscript(ckpt, overrides)
	result := agent.RunResult{
		Output:    lastAssistantText(msgs),
		RunID:     ckpt.RunID,
		AgentID:   ckpt.AgentID,
		Messages:  msgs,
		ModelUsed: "",
	}
	return ReplayResult{
		Result:          result,
		ReplayedFrom:    ckpt.ID,
		OriginalTraceID: ckpt.TraceID,
		StepsReplayed:   ckpt.StepIndex + 1,
		StepsExecuted:   0,
	}
}

// Runner re-executes an agent against a prebuilt transcript, the same
// contract the orchestrator implements, kept as an interface here so this
// package never imports orchestrator and risks a cycle.
type Runner interface {
	RunFromTranscript(msgs []*model.Message, a agent.Agent) (agent.RunResult, string, error)
}

// toolCallKey compares calls by name and serialized arguments; identical
// pairs produce equal keys regardless of call ID, which is expected to
// differ between the original and replayed run.
func toolCallKey(tc agent.ToolCall) string {
	return string(tc.Name) + "|" + string(tc.Arguments)
}

// detectDivergence compares the new run's tool calls against the
// checkpoint's pending tool calls: divergence at position k if
// names/arguments differ, or if lengths differ after the common prefix.
func detectDivergence(pending, actual []agent.ToolCall) *int {
	n := len(pending)
	if len(actual) < n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		if toolCallKey(pending[i]) != toolCallKey(actual[i]) {
			return &i
		}
	}
	if len(pending) != len(actual) {
		idx := n
		return &idx
	}
	return nil
}

// LiveReplay rebuilds a run-ready transcript from ckpt and runs the agent
// against it via runner, detecting divergence from the checkpoint's
// recorded pending tool calls.
func LiveReplay(ckpt Checkpoint, overrides Overrides, a agent.Agent, runner Runner) (ReplayResult, error) {
	msgs := rebuildTranscript(ckpt, overrides)
	result, newTraceID, err := runner.RunFromTranscript(msgs, a)
	if err != nil {
		return ReplayResult{}, err
	}
	divergedAt := detectDivergence(ckpt.PendingToolCalls, result.ToolCalls)
	return ReplayResult{
		Result:          result,
		ReplayedFrom:    ckpt.ID,
		OriginalTraceID: ckpt.TraceID,
		NewTraceID:      newTraceID,
		StepsReplayed:   ckpt.StepIndex + 1,
		StepsExecuted:   1,
		DivergedAt:      divergedAt,
	}, nil
}

// ForkOptions configures Fork.
type ForkOptions struct {
	Type              ForkType
	AdditionalContext string            // for ForkTypeContext
	ReplaceLastUser   *model.Message    // for ForkTypeInput
	ToolResultMocks   map[string]any    // for ForkTypeMocked
	NewID             string
}

// Fork derives a new checkpoint from ckpt per opts.Type, then immediately
// invokes live replay from it.
func Fork(ckpt Checkpoint, opts ForkOptions, a agent.Agent, runner Runner) (Checkpoint, ReplayResult, error) {
	forked := ckpt
	forked.ID = opts.NewID
	forked.ForkedFrom = ckpt.ID
	forked.ForkType = opts.Type
	forked.Messages = append([]*model.Message(nil), ckpt.Messages...)
	forked.ToolResults = copyToolResults(ckpt.ToolResults)

	overrides := Overrides{ToolResults: map[string]any{}}
	switch opts.Type {
	case ForkTypeContext:
		if len(forked.Messages) > 0 && forked.Messages[0].Role == model.ConversationRoleSystem {
			sys := *forked.Messages[0]
			sys.Parts = append([]model.Part(nil), sys.Parts...)
			suffix := "\n\n" + opts.AdditionalContext
			merged := false
			for i, part := range sys.Parts {
				if tp, ok := part.(model.TextPart); ok {
					sys.Parts[i] = model.TextPart{Text: tp.Text + suffix}
					merged = true
					break
				}
			}
			if !merged {
				sys.Parts = append(sys.Parts, model.TextPart{Text: suffix})
			}
			forked.Messages[0] = &sys
		}
	case ForkTypeInput:
		if opts.ReplaceLastUser != nil {
			for i := len(forked.Messages) - 1; i >= 0; i-- {
				if forked.Messages[i].Role == model.ConversationRoleUser {
					forked.Messages[i] = opts.ReplaceLastUser
					break
				}
			}
		}
	case ForkTypeMocked:
		for id, v := range opts.ToolResultMocks {
			forked.ToolResults[id] = v
			overrides.ToolResults[id] = v
		}
	}

	result, err := LiveReplay(forked, overrides, a, runner)
	return forked, result, err
}

func copyToolResults(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
