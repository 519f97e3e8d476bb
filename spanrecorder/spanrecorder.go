// Package spanrecorder implements the Span Recorder: minting structured
// trace spans and forwarding them synchronously to an optional observer.
// Spans are purely descriptive and never affect control flow.
package spanrecorder

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sovereignrun/agentcore/agent"
)

// Recorder accumulates the spans for one run's trace.
type Recorder struct {
	traceID string
	onSpan  func(agent.Span)

	mu    sync.Mutex
	spans []agent.Span
}

// New constructs a Recorder for traceID. onSpan, if non-nil, is invoked
// synchronously immediately after each span is recorded.
func New(traceID string, onSpan func(agent.Span)) *Recorder {
	return &Recorder{traceID: traceID, onSpan: onSpan}
}

func newSpanID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "span_" + hex.EncodeToString(buf)
}

// Record mints a span with a fresh id and appends it to the trace.
func (r *Recorder) Record(name string, kind agent.SpanKind, parentID string, start, end time.Time, status agent.SpanStatus, attrs map[string]any) agent.Span {
	span := agent.Span{
		ID:         newSpanID(),
		TraceID:    r.traceID,
		ParentID:   parentID,
		Name:       name,
		Kind:       kind,
		Status:     status,
		StartTime:  start,
		EndTime:    end,
		Attributes: attrs,
	}
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
	if r.onSpan != nil {
		r.onSpan(span)
	}
	return span
}

// Trace returns the accumulated spans as an agent.Trace.
func (r *Recorder) Trace() agent.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return agent.Trace{TraceID: r.traceID, Spans: append([]agent.Span(nil), r.spans...)}
}

// PrependRoot inserts root at position 0 of the trace: the root
// "agent.run" span always occupies index 0.
func (r *Recorder) PrependRoot(root agent.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append([]agent.Span{root}, r.spans...)
}
