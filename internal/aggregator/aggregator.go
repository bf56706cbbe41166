// Package aggregator groups incoming spans into traces and decides
// when a trace is complete enough to evaluate.
package aggregator

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

const (
	DefaultIdleWindow = 30 * time.Second
	DefaultShards     = 64
)

// Aggregator owns all in-progress trace state. Per-trace mutual
// exclusion is enforced through sharded locks keyed by trace id hash,
// so two callers never mutate the same trace concurrently.
type Aggregator struct {
	shards     []*shard
	idleWindow time.Duration

	// now is swappable for tests.
	now func() time.Time
}

type shard struct {
	mu     sync.Mutex
	traces map[string]*traceEntry
}

type traceEntry struct {
	tenantID string

	// spans is keyed by span id; duplicate span ids are last-write-wins.
	spans map[string]core.Span

	firstSeen time.Time
	lastSeen  time.Time

	rootSeen bool
	rootEnd  time.Time

	state core.TraceState
}

func New(idleWindow time.Duration, shardCount int) *Aggregator {
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}
	if shardCount <= 0 {
		shardCount = DefaultShards
	}
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{traces: make(map[string]*traceEntry)}
	}
	return &Aggregator{
		shards:     shards,
		idleWindow: idleWindow,
		now:        time.Now,
	}
}

func (a *Aggregator) shardFor(traceID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(traceID))
	return a.shards[h.Sum32()%uint32(len(a.shards))]
}

// AddSpan appends a span to its in-progress trace, creating the trace
// entry on first arrival. A span arriving after the trace was drained
// starts a fresh trace under the same id; drained traces are already
// handed off and are never reopened.
//
// Logically inconsistent but well-formed spans (e.g. end before start)
// are stored as-is; deciding their relevance is the rule engine's job.
func (a *Aggregator) AddSpan(tenantID string, span core.Span) error {
	if span.TraceID == "" {
		return core.MalformedSpanError{Reason: "missing trace id"}
	}
	if span.SpanID == "" {
		return core.MalformedSpanError{Reason: "missing span id"}
	}

	s := a.shardFor(span.TraceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := a.now()
	entry, ok := s.traces[span.TraceID]
	if !ok {
		entry = &traceEntry{
			tenantID:  tenantID,
			spans:     make(map[string]core.Span),
			firstSeen: now,
			state:     core.TraceOpen,
		}
		s.traces[span.TraceID] = entry
	}

	entry.spans[span.SpanID] = span
	entry.lastSeen = now
	if span.IsRoot() {
		entry.rootSeen = true
		entry.rootEnd = span.EndTime
	}
	return nil
}

// IsComplete reports whether the trace can be evaluated. Completeness
// is monotonic: once true it stays true for the trace's lifetime.
func (a *Aggregator) IsComplete(traceID string) bool {
	s := a.shardFor(traceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.traces[traceID]
	if !ok {
		return false
	}
	return a.checkComplete(entry)
}

// checkComplete promotes OPEN -> COMPLETE when either the root span
// has closed or the idle window elapsed. Caller holds the shard lock.
func (a *Aggregator) checkComplete(entry *traceEntry) bool {
	if entry.state != core.TraceOpen {
		return true
	}
	now := a.now()
	if entry.rootSeen && now.After(entry.rootEnd) {
		entry.state = core.TraceComplete
		return true
	}
	if now.Sub(entry.lastSeen) >= a.idleWindow {
		entry.state = core.TraceComplete
		return true
	}
	return false
}

// Drain removes and returns the assembled trace for hand-off.
// The trace must be complete; a drained id disappears from the
// aggregator entirely, so the OPEN -> COMPLETE -> DRAINED machine
// never walks backwards.
func (a *Aggregator) Drain(traceID string) (core.Trace, error) {
	s := a.shardFor(traceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.traces[traceID]
	if !ok {
		return core.Trace{}, core.ErrTraceNotFound
	}
	if !a.checkComplete(entry) {
		return core.Trace{}, core.ErrTraceNotComplete
	}

	entry.state = core.TraceDrained
	delete(s.traces, traceID)
	return assemble(traceID, entry), nil
}

// Sweep drains every trace that has become complete. The background
// sweep task calls this to feed the evaluation pipeline.
func (a *Aggregator) Sweep() []core.Trace {
	var out []core.Trace
	for _, s := range a.shards {
		s.mu.Lock()
		for id, entry := range s.traces {
			if !a.checkComplete(entry) {
				continue
			}
			entry.state = core.TraceDrained
			delete(s.traces, id)
			out = append(out, assemble(id, entry))
		}
		s.mu.Unlock()
	}
	return out
}

// Open returns the number of traces currently held by the aggregator.
func (a *Aggregator) Open() int {
	n := 0
	for _, s := range a.shards {
		s.mu.Lock()
		n += len(s.traces)
		s.mu.Unlock()
	}
	return n
}

func assemble(traceID string, entry *traceEntry) core.Trace {
	spans := make([]core.Span, 0, len(entry.spans))
	for _, sp := range entry.spans {
		spans = append(spans, sp)
	}
	core.SortSpans(spans)

	return core.Trace{
		TraceID:   traceID,
		TenantID:  entry.tenantID,
		Spans:     spans,
		FirstSeen: entry.firstSeen,
		LastSeen:  entry.lastSeen,
	}
}
