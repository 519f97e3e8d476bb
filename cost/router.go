package cost

import "sort"

// ModelCapability describes one routable model's properties for the
// router's capability-gate and scoring pass.
type ModelCapability struct {
	Name         string
	Provider     string
	SupportsTool bool
	SupportsVision bool
	ContextWindow int
	IsLocal      bool
	QualityTier  int // higher is stronger reasoning, used as a tiebreaker
	Pricing      Pricing
}

// RouteDecision is the router's chosen model plus the reasoning behind it.
type RouteDecision struct {
	Model      string
	Reason     string
	Candidates []string // every capability-gate survivor, in score order
}

// Router selects a model for a task from a fixed catalog of capabilities.
type Router struct {
	Catalog []ModelCapability
	// PreferLocal routes to a local runner whenever one survives the
	// capability gate, overriding cost/quality scoring.
	PreferLocal bool
}

// NewRouter constructs a Router over catalog.
func NewRouter(catalog []ModelCapability, preferLocal bool) *Router {
	return &Router{Catalog: catalog, PreferLocal: preferLocal}
}

// Route picks the best model in the catalog for hints, applying capability
// gates (tool support, vision support, context window) before scoring by
// cost-sensitivity-weighted price and quality tier.
func (r *Router) Route(hints TaskHints) (RouteDecision, bool) {
	var survivors []ModelCapability
	for _, m := range r.Catalog {
		if hints.NeedsTools && !m.SupportsTool {
			continue
		}
		if hints.NeedsVision && !m.SupportsVision {
			continue
		}
		if hints.NeedsLongContext && m.ContextWindow < 32000 {
			continue
		}
		survivors = append(survivors, m)
	}
	if len(survivors) == 0 {
		return RouteDecision{}, false
	}

	if r.PreferLocal {
		for _, m := range survivors {
			if m.IsLocal {
				return RouteDecision{Model: m.Name, Reason: "local runner preferred and capability-eligible", Candidates: names(survivors)}, true
			}
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		si := score(survivors[i], hints)
		sj := score(survivors[j], hints)
		return si > sj
	})

	reason := "best score for task profile"
	if hints.NeedsReasoning {
		reason = "highest quality tier for a reasoning-heavy task"
	} else if hints.NeedsSpeed {
		reason = "fastest capability-eligible model for a speed-sensitive task"
	}
	return RouteDecision{Model: survivors[0].Name, Reason: reason, Candidates: names(survivors)}, true
}

func score(m ModelCapability, hints TaskHints) float64 {
	quality := float64(m.QualityTier)
	costPenalty := (m.Pricing.InputPerMillion + m.Pricing.OutputPerMillion) * hints.CostSensitivity
	if hints.NeedsReasoning {
		return quality*2 - costPenalty
	}
	if hints.NeedsSpeed {
		return -costPenalty // price stands in for latency when nothing else is known
	}
	return quality - costPenalty
}

func names(cs []ModelCapability) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
