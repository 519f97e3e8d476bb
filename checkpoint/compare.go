package checkpoint

import (
	"strings"

	"github.com/sovereignrun/agentcore/agent"
)

// StepClassification labels the relationship between a pair of
// corresponding steps across two compared traces.
type StepClassification string

const (
	// StepIdentical means the two steps are byte-equivalent.
	StepIdentical StepClassification = "identical"
	// StepSimilar is reserved for LLM-response textual differences only.
	StepSimilar StepClassification = "similar"
	// StepDifferent means tool identity, arguments, or errors disagree.
	StepDifferent StepClassification = "different"
	// StepOnlyIn1 means the step exists only in the first trace.
	StepOnlyIn1 StepClassification = "only_in_1"
	// StepOnlyIn2 means the step exists only in the second trace.
	StepOnlyIn2 StepClassification = "only_in_2"
)

// StepDiff is one position's comparison result.
type StepDiff struct {
	Index          int
	Classification StepClassification
	Detail         string
}

// TraceComparison is the diagnostic result of comparing two finished traces.
// It is not on the orchestrator's hot path.
type TraceComparison struct {
	TraceID1 string
	TraceID2 string
	Steps    []StepDiff
}

// CompareTraces compares two finished traces step by step.
func CompareTraces(t1, t2 agent.Trace) TraceComparison {
	n := len(t1.Spans)
	if len(t2.Spans) > n {
		n = len(t2.Spans)
	}
	steps := make([]StepDiff, 0, n)
	for i := 0; i < n; i++ {
		switch {
		case i >= len(t1.Spans):
			steps = append(steps, StepDiff{Index: i, Classification: StepOnlyIn2})
		case i >= len(t2.Spans):
			steps = append(steps, StepDiff{Index: i, Classification: StepOnlyIn1})
		default:
			steps = append(steps, compareSpans(i, t1.Spans[i], t2.Spans[i]))
		}
	}
	return TraceComparison{TraceID1: t1.TraceID, TraceID2: t2.TraceID, Steps: steps}
}

func compareSpans(index int, a, b agent.Span) StepDiff {
	if a.Name != b.Name {
		return StepDiff{Index: index, Classification: StepDifferent, Detail: "span name differs"}
	}
	switch {
	case strings.HasPrefix(a.Name, "tool."):
		aName, aArgs, aErr := spanToolIdentity(a)
		bName, bArgs, bErr := spanToolIdentity(b)
		if aName != bName || aArgs != bArgs || aErr != bErr || a.Status != b.Status {
			return StepDiff{Index: index, Classification: StepDifferent, Detail: "tool identity, arguments, or error differs"}
		}
		return StepDiff{Index: index, Classification: StepIdentical}
	case a.Name == "llm.chat":
		aText, _ := a.Attributes["output"].(string)
		bText, _ := b.Attributes["output"].(string)
		if aText == bText {
			return StepDiff{Index: index, Classification: StepIdentical}
		}
		return StepDiff{Index: index, Classification: StepSimilar, Detail: "llm response text differs"}
	default:
		if a.Status != b.Status {
			return StepDiff{Index: index, Classification: StepDifferent, Detail: "status differs"}
		}
		return StepDiff{Index: index, Classification: StepIdentical}
	}
}

func spanToolIdentity(s agent.Span) (name string, args string, toolErr string) {
	if n, ok := s.Attributes["tool.name"].(string); ok {
		name = n
	}
	if a, ok := s.Attributes["tool.arguments"].(string); ok {
		args = a
	}
	if e, ok := s.Attributes["tool.error"].(string); ok {
		toolErr = e
	}
	return
}
