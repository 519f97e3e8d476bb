// Package cost implements ahead-of-run cost estimation, model routing, and
// budget enforcement, backed by an in-memory, mutex-protected ledger shared
// across concurrent runs.
package cost

import (
	"regexp"
	"strings"
)

// Complexity classifies a user input's expected difficulty.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// outputTokenRange is {min, max, expected} for a complexity tier.
type outputTokenRange struct{ min, max, expected int }

var outputTokensByComplexity = map[Complexity]outputTokenRange{
	ComplexitySimple:   {50, 300, 150},
	ComplexityModerate: {300, 1500, 800},
	ComplexityComplex:  {1500, 6000, 3000},
}

var callsPerComplexity = map[Complexity]int{
	ComplexitySimple:   1,
	ComplexityModerate: 2,
	ComplexityComplex:  4,
}

// TaskHints are derived from the user input by a simple task analyzer and
// feed both cost estimation and model routing.
type TaskHints struct {
	Complexity       Complexity
	NeedsTools       bool
	NeedsVision      bool
	NeedsLongContext bool
	NeedsReasoning   bool
	NeedsSpeed       bool
	CostSensitivity  float64 // 0 (indifferent) .. 1 (highly sensitive)
}

// AnalyzeTask classifies input with a simple heuristic analyzer: length and
// a handful of keyword signals. No pack example repo carries a dedicated
// task-complexity classifier library, so this stays on stdlib string/regexp
// matching; production deployments are expected to swap in a model-backed
// analyzer behind the same TaskHints shape.
func AnalyzeTask(input string, hasTools bool) TaskHints {
	lower := strings.ToLower(input)
	complexity := ComplexitySimple
	switch {
	case len(input) > 800 || reasoningPattern.MatchString(lower):
		complexity = ComplexityComplex
	case len(input) > 200:
		complexity = ComplexityModerate
	}
	return TaskHints{
		Complexity:       complexity,
		NeedsTools:       hasTools,
		NeedsVision:      strings.Contains(lower, "image") || strings.Contains(lower, "picture"),
		NeedsLongContext: len(input) > 4000,
		NeedsReasoning:   reasoningPattern.MatchString(lower),
		NeedsSpeed:       strings.Contains(lower, "quickly") || strings.Contains(lower, "asap"),
		CostSensitivity:  0.5,
	}
}

var reasoningPattern = regexp.MustCompile(`(?i)\b(prove|derive|step[- ]by[- ]step|analy[sz]e|plan|design|architecture)\b`)

// Pricing is the per-million-token price for a model, in the estimator's
// currency unit.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Estimate is the result of ahead-of-run cost estimation.
type Estimate struct {
	MinCost      float64
	MaxCost      float64
	ExpectedCost float64
	Confidence   float64
	Breakdown    map[string]any
	Warnings     []string
}

// EstimateOptions configures EstimateCost.
type EstimateOptions struct {
	Model    string
	Pricing  *Pricing // nil means pricing is unknown for Model
	ToolsLen int
}

// localRunnerPattern matches model identifiers naming a local, zero-cost
// runner.
var localRunnerPattern = regexp.MustCompile(`(?i)^(ollama|local|llama\.cpp|lmstudio)/`)

// EstimateCost computes an ahead-of-run cost estimate for input against the
// named model.
func EstimateCost(input string, opts EstimateOptions) Estimate {
	if localRunnerPattern.MatchString(opts.Model) {
		return Estimate{Confidence: 1.0, Breakdown: map[string]any{"local_runner": true}}
	}

	hints := AnalyzeTask(input, opts.ToolsLen > 0)
	inputTokens := tokenCount(input)
	outRange := outputTokensByComplexity[hints.Complexity]

	iterations := iterationsFor(hints, opts.ToolsLen)
	toolCalls := toolCallsFor(hints, opts.ToolsLen)

	minCost, maxCost, expectedCost := 0.0, 0.0, 0.0
	warnings := []string{}
	if opts.Pricing != nil {
		minCost = costOf(inputTokens, outRange.min, *opts.Pricing) * float64(iterations)
		maxCost = costOf(inputTokens, outRange.max, *opts.Pricing) * float64(iterations)
		expectedCost = costOf(inputTokens, outRange.expected, *opts.Pricing) * float64(iterations)
	} else {
		warnings = append(warnings, "pricing unknown for model "+opts.Model)
	}

	confidence := 0.9
	if opts.Pricing == nil {
		confidence -= 0.3
	}
	switch hints.Complexity {
	case ComplexityModerate:
		confidence -= 0.1
	case ComplexityComplex:
		confidence -= 0.25
	}
	if hints.NeedsTools {
		confidence -= 0.1
	}
	if toolCalls > 3 {
		confidence -= 0.1
	}
	confidence = clamp(confidence, 0.2, 0.95)

	return Estimate{
		MinCost:      minCost,
		MaxCost:      maxCost,
		ExpectedCost: expectedCost,
		Confidence:   confidence,
		Warnings:     warnings,
		Breakdown: map[string]any{
			"input_tokens":   inputTokens,
			"complexity":     hints.Complexity,
			"iterations":     iterations,
			"tool_calls":     toolCalls,
			"output_tokens":  outRange.expected,
		},
	}
}

func tokenCount(s string) int {
	return (len(s) + 3) / 4
}

func iterationsFor(hints TaskHints, toolsLen int) int {
	base := 1
	if hints.Complexity == ComplexityComplex {
		base = 2
	}
	if toolsLen > 0 {
		extra := 1
		if hints.Complexity == ComplexityComplex {
			extra = 3
		} else if hints.Complexity == ComplexityModerate {
			extra = 2
		}
		base += extra
	}
	return base
}

func toolCallsFor(hints TaskHints, toolsLen int) int {
	perComplexity := callsPerComplexity[hints.Complexity]
	cap := 2 * toolsLen
	if cap <= 0 {
		return 0
	}
	if perComplexity < cap {
		return perComplexity
	}
	return cap
}

func costOf(inputTokens, outputTokens int, pricing Pricing) float64 {
	return (float64(inputTokens)*pricing.InputPerMillion + float64(outputTokens)*pricing.OutputPerMillion) / 1_000_000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
