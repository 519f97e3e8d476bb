package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sovereignrun/agentcore/tools"
)

// BasicOptions configures Basic.
type BasicOptions struct {
	// BlockedInputSubstrings rejects input containing any of these
	// substrings, case-insensitive. Intended for a minimal injection/abuse
	// deny-list; a dedicated injection detector lives in the orchestrator's
	// optional classification step, not here.
	BlockedInputSubstrings []string

	// BlockedOutputSubstrings rejects assistant output containing any of
	// these substrings, case-insensitive.
	BlockedOutputSubstrings []string

	// AllowTools, if non-empty, is the only set of tool-name patterns
	// (see tools.MatchPattern) approved for dispatch.
	AllowTools []string

	// BlockTools rejects dispatch for any matching tool-name pattern, and
	// takes precedence over AllowTools.
	BlockTools []string

	// Label annotates emitted decisions; defaults to "basic".
	Label string
}

// Basic is a minimal Engine enforcing substring deny-lists on input/output
// and tool-name allow/block lists on dispatch.
type Basic struct {
	opts  BasicOptions
	label string
}

// NewBasic constructs a Basic engine from opts.
func NewBasic(opts BasicOptions) *Basic {
	label := strings.TrimSpace(opts.Label)
	if label == "" {
		label = "basic"
	}
	return &Basic{opts: opts, label: label}
}

// FilterInput rejects input matching a blocked substring.
func (e *Basic) FilterInput(_ context.Context, input InputCheck) (Decision, error) {
	if hit, ok := matchesAny(input.Input, e.opts.BlockedInputSubstrings); ok {
		return Decision{Blocked: true, Reason: fmt.Sprintf("input matched blocked term %q", hit), Labels: e.labels()}, nil
	}
	return Decision{Labels: e.labels()}, nil
}

// FilterOutput rejects output matching a blocked substring. Basic never
// proposes a revision; it only blocks or allows.
func (e *Basic) FilterOutput(_ context.Context, input OutputCheck) (Decision, error) {
	if hit, ok := matchesAny(input.Content, e.opts.BlockedOutputSubstrings); ok {
		return Decision{Blocked: true, Reason: fmt.Sprintf("output matched blocked term %q", hit), Labels: e.labels()}, nil
	}
	return Decision{Labels: e.labels()}, nil
}

// ApproveToolCall rejects dispatch for tools outside AllowTools or inside
// BlockTools.
func (e *Basic) ApproveToolCall(_ context.Context, input ToolCallCheck) (Decision, error) {
	name := string(input.ToolName)
	if matchesPattern(e.opts.BlockTools, name) {
		return Decision{Blocked: true, Reason: fmt.Sprintf("tool %q is blocked by policy", name), Labels: e.labels()}, nil
	}
	if len(e.opts.AllowTools) > 0 && !matchesPattern(e.opts.AllowTools, name) {
		return Decision{Blocked: true, Reason: fmt.Sprintf("tool %q is not in the allowed set", name), Labels: e.labels()}, nil
	}
	return Decision{Labels: e.labels()}, nil
}

func (e *Basic) labels() map[string]string {
	return map[string]string{"policy_engine": e.label}
}

func matchesAny(haystack string, substrings []string) (string, bool) {
	lower := strings.ToLower(haystack)
	for _, s := range substrings {
		if s == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return s, true
		}
	}
	return "", false
}

func matchesPattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if tools.MatchPattern(p, name) {
			return true
		}
	}
	return false
}
