// Package messagebuilder produces the ordered message list handed to the
// model backend at the start of a run and on each context-compression pass.
package messagebuilder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sovereignrun/agentcore/agent"
	"github.com/sovereignrun/agentcore/memory"
	"github.com/sovereignrun/agentcore/model"
	"github.com/sovereignrun/agentcore/telemetry"
)

// ContextBuilder composes a budget-constrained message prefix from a
// thread's history, used instead of the default fixed-window fetch when
// configured.
type ContextBuilder interface {
	Build(ctx context.Context, threadID string, effectiveModel string) ([]*model.Message, error)
}

// InsightTier distinguishes budgeted guidance from always-kept safety
// insights.
type InsightTier int

const (
	// TierGuidance insights are capped per run.
	TierGuidance InsightTier = iota
	// TierSafety insights are never dropped by a budget.
	TierSafety
)

// Insight is one prior-run learning optionally appended to the system
// message.
type Insight struct {
	ID   string
	Text string
	Tier InsightTier

	// MinRunsBetween enforces a minimum number of runs between successive
	// injections of this insight for the same agent, to avoid noisy
	// repetition of guidance-tier insights. Zero means no spacing
	// requirement. Ignored for TierSafety.
	MinRunsBetween int
}

// Builder produces message lists for a run.
type Builder struct {
	Memory memory.Store // nil disables memory entirely
	Logger telemetry.Logger

	// MaxGuidanceInsights caps TierGuidance insights injected per run;
	// TierSafety insights are always included. Zero means unlimited.
	MaxGuidanceInsights int
}

// New constructs a Builder.
func New(store memory.Store, logger telemetry.Logger) *Builder {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Builder{Memory: store, Logger: logger}
}

// userContentParts builds the user message content parts: text (optionally
// prefixed by a transcribed-audio marker) followed by any images.
func userContentParts(input string, images []model.ImagePart, audioTranscript string) []model.Part {
	text := input
	if audioTranscript != "" {
		text = fmt.Sprintf("[Audio transcription]: %s\n%s", audioTranscript, input)
	}
	parts := []model.Part{model.TextPart{Text: text}}
	for _, img := range images {
		parts = append(parts, img)
	}
	return parts
}

// Build produces the initial message list for a run.
func (b *Builder) Build(ctx context.Context, a agent.Agent, opts agent.RunOptions, threadID string, audioTranscript string, cb ContextBuilder) ([]*model.Message, error) {
	userMsg := &model.Message{Role: model.ConversationRoleUser, Parts: userContentParts(opts.Input, opts.Images, audioTranscript)}
	systemMsg := &model.Message{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: a.Instructions}}}

	if b.Memory == nil || !opts.UseMemoryOrDefault() {
		return []*model.Message{systemMsg, userMsg}, nil
	}

	if _, err := b.Memory.CreateThread(ctx, a.ID, nil, threadID); err != nil {
		return nil, fmt.Errorf("messagebuilder: ensure thread: %w", err)
	}

	if !opts.LoadHistoryOrDefault() {
		return []*model.Message{systemMsg, userMsg}, nil
	}

	if cb != nil {
		prefix, err := cb.Build(ctx, threadID, a.Model)
		if err != nil {
			return nil, fmt.Errorf("messagebuilder: context builder: %w", err)
		}
		return append(prefix, userMsg), nil
	}

	entries, err := b.Memory.GetEntries(ctx, memory.EntryQuery{ThreadID: threadID, Limit: memory.DefaultHistoryLimit})
	if err != nil {
		return nil, fmt.Errorf("messagebuilder: load history: %w", err)
	}
	msgs := make([]*model.Message, 0, len(entries)+2)
	msgs = append(msgs, systemMsg)
	for _, e := range entries {
		if e.Message != nil {
			msgs = append(msgs, e.Message)
		}
	}
	msgs = append(msgs, userMsg)
	return msgs, nil
}

// SaveEntry persists a turn to memory. Failures are logged at warn level and
// forwarded to onMemoryError; they never abort the run.
func (b *Builder) SaveEntry(ctx context.Context, threadID string, msg *model.Message, onMemoryError func(error)) {
	if b.Memory == nil {
		return
	}
	if err := b.Memory.AddEntry(ctx, memory.Entry{ThreadID: threadID, Message: msg}); err != nil {
		b.Logger.Warn(ctx, "memory write failed", "thread_id", threadID, "error", err.Error())
		if onMemoryError != nil {
			onMemoryError(err)
		}
	}
}

// EnrichMessagesWithInsights appends a bullet list of prior-run insights to
// the system message (the first message, by convention). Safety-tier
// insights are never dropped; guidance-tier insights are capped at
// MaxGuidanceInsights per run.
func (b *Builder) EnrichMessagesWithInsights(messages []*model.Message, insights []Insight) {
	if len(messages) == 0 || len(insights) == 0 {
		return
	}
	safety := make([]Insight, 0, len(insights))
	guidance := make([]Insight, 0, len(insights))
	for _, ins := range insights {
		if ins.Tier == TierSafety {
			safety = append(safety, ins)
		} else {
			guidance = append(guidance, ins)
		}
	}
	if b.MaxGuidanceInsights > 0 && len(guidance) > b.MaxGuidanceInsights {
		guidance = guidance[:b.MaxGuidanceInsights]
	}

	var sb strings.Builder
	sb.WriteString("\n\nInsights from prior runs:\n")
	for _, ins := range append(safety, guidance...) {
		sb.WriteString("- ")
		sb.WriteString(ins.Text)
		sb.WriteString("\n")
	}
	appendToSystemMessage(messages, sb.String())
}

// InsightScheduler tracks, per agent, the run sequence number at which each
// insight (by ID) was last injected, enforcing MinRunsBetween spacing. Safe
// for concurrent use.
type InsightScheduler struct {
	mu       sync.Mutex
	lastSeen map[string]map[string]int // agentID -> insightID -> run sequence
	runSeq   map[string]int            // agentID -> run sequence counter
}

// NewInsightScheduler constructs an empty InsightScheduler.
func NewInsightScheduler() *InsightScheduler {
	return &InsightScheduler{
		lastSeen: make(map[string]map[string]int),
		runSeq:   make(map[string]int),
	}
}

// Admit advances agentID's run counter and filters insights down to those
// that should be injected this run. TierSafety insights are always admitted;
// TierGuidance insights with a nonzero MinRunsBetween are skipped when fewer
// than that many runs have passed since they were last admitted.
func (s *InsightScheduler) Admit(agentID string, insights []Insight) []Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runSeq[agentID]++
	turn := s.runSeq[agentID]
	seen, ok := s.lastSeen[agentID]
	if !ok {
		seen = make(map[string]int)
		s.lastSeen[agentID] = seen
	}
	out := make([]Insight, 0, len(insights))
	for _, ins := range insights {
		if ins.Tier != TierSafety && ins.MinRunsBetween > 0 && ins.ID != "" {
			if last, ok := seen[ins.ID]; ok {
				if delta := turn - last; delta >= 0 && delta < ins.MinRunsBetween {
					continue
				}
			}
		}
		if ins.ID != "" {
			seen[ins.ID] = turn
		}
		out = append(out, ins)
	}
	return out
}

// AddContextToMessages appends key-value pairs to the system message.
func AddContextToMessages(messages []*model.Message, context map[string]any) {
	if len(messages) == 0 || len(context) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("\n\nContext:\n")
	for k, v := range context {
		fmt.Fprintf(&sb, "- %s: %v\n", k, v)
	}
	appendToSystemMessage(messages, sb.String())
}

func appendToSystemMessage(messages []*model.Message, suffix string) {
	for _, m := range messages {
		if m.Role != model.ConversationRoleSystem {
			continue
		}
		for i, part := range m.Parts {
			if tp, ok := part.(model.TextPart); ok {
				m.Parts[i] = model.TextPart{Text: tp.Text + suffix}
				return
			}
		}
		m.Parts = append(m.Parts, model.TextPart{Text: suffix})
		return
	}
}
