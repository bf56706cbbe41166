package core

import (
	"sort"
	"time"
)

// Span is a single recorded operation within a trace.
// It is immutable once ingested.
type Span struct {
	// TraceID groups this span with all others of the same trace.
	TraceID string `json:"trace_id"`

	// SpanID is unique within the trace.
	SpanID string `json:"span_id"`

	// ParentSpanID is empty for the root span.
	ParentSpanID string `json:"parent_span_id,omitempty"`

	// Service is the name of the service that produced this span.
	Service string `json:"service"`

	// Operation is the recorded operation name (e.g. "GET /orders").
	Operation string `json:"operation"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Attributes are the typed key/value attributes attached to the span.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// IsRoot reports whether this span is the trace's root span.
func (s Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

func (s Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// TraceState describes where a trace is in its lifecycle.
// Transitions are strictly Open -> Complete -> Drained.
type TraceState int

const (
	TraceOpen TraceState = iota
	TraceComplete
	TraceDrained
)

func (s TraceState) String() string {
	switch s {
	case TraceOpen:
		return "open"
	case TraceComplete:
		return "complete"
	case TraceDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// Trace is the aggregation of all spans sharing one trace identifier.
// It is owned exclusively by the aggregator until drained.
type Trace struct {
	TraceID  string `json:"trace_id"`
	TenantID string `json:"tenant_id"`

	// Spans are ordered by start time, span id as tie-break.
	Spans []Span `json:"spans"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SortSpans orders spans deterministically by start time, then span id.
func SortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].StartTime.Equal(spans[j].StartTime) {
			return spans[i].StartTime.Before(spans[j].StartTime)
		}
		return spans[i].SpanID < spans[j].SpanID
	})
}
