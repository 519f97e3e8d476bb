package guardrail

import (
	"context"
	"regexp"
)

// InjectionVerdict is the outcome of classifying a user input for prompt
// injection before any backend iteration.
type InjectionVerdict struct {
	Blocked bool
	Reason  string
}

// InjectionDetector classifies raw user input for likely prompt-injection
// attempts. A nil detector disables the classification step entirely.
type InjectionDetector interface {
	Classify(ctx context.Context, input string) (InjectionVerdict, error)
}

// patternDetector is a minimal regex-based InjectionDetector. No pack
// example repo carries a dedicated prompt-injection classifier library, so
// this stays on regexp from the standard library; production deployments
// are expected to supply their own InjectionDetector (e.g. backed by a
// classifier model) through the same interface.
type patternDetector struct {
	patterns []*regexp.Regexp
}

// NewPatternInjectionDetector builds an InjectionDetector that blocks input
// matching any of a small set of common injection phrasings.
func NewPatternInjectionDetector() InjectionDetector {
	raw := []string{
		`(?i)ignore (all )?(previous|prior|above) instructions`,
		`(?i)disregard (your|the) (system|previous) prompt`,
		`(?i)you are now (in )?developer mode`,
		`(?i)reveal (your|the) system prompt`,
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return &patternDetector{patterns: patterns}
}

// Classify reports InjectionVerdict{Blocked: true} if input matches a known
// injection phrasing.
func (d *patternDetector) Classify(_ context.Context, input string) (InjectionVerdict, error) {
	for _, p := range d.patterns {
		if p.MatchString(input) {
			return InjectionVerdict{Blocked: true, Reason: "input matched pattern: " + p.String()}, nil
		}
	}
	return InjectionVerdict{}, nil
}
