package core

import (
	"time"

	"github.com/google/uuid"
)

// SignalStatus is the triage state of a signal. Signals are never
// deleted; "resolved" is the terminal, soft-closed state.
type SignalStatus string

const (
	SignalOpen          SignalStatus = "open"
	SignalInvestigating SignalStatus = "investigating"
	SignalResolved      SignalStatus = "resolved"
)

func (s SignalStatus) IsValid() bool {
	switch s {
	case SignalOpen, SignalInvestigating, SignalResolved:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status change is allowed.
// Resolved is terminal.
func (s SignalStatus) CanTransitionTo(next SignalStatus) bool {
	switch s {
	case SignalOpen:
		return next == SignalInvestigating || next == SignalResolved
	case SignalInvestigating:
		return next == SignalResolved
	default:
		return false
	}
}

// Match references the exact spans that satisfied a rule's predicate.
type Match struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`

	// Spans are the witness spans, ordered by start time then span id.
	Spans []Span `json:"spans"`
}

// SpanIDs returns the ids of the witness spans, in match order.
func (m Match) SpanIDs() []string {
	ids := make([]string, 0, len(m.Spans))
	for _, s := range m.Spans {
		ids = append(ids, s.SpanID)
	}
	return ids
}

// Signal is the persisted output of a rule match: a detected
// behavioral violation on one trace.
type Signal struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenant_id"`
	RuleID   string    `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	TraceID  string    `json:"trace_id"`

	Severity Severity     `json:"severity"`
	Status   SignalStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MatchedSpanIDs reference the spans that satisfied the rule.
	MatchedSpanIDs []string `json:"matched_span_ids,omitempty"`

	// Context carries whatever the rule attached at emission time.
	Context map[string]any `json:"context,omitempty"`
}

// Capabilities is the single, narrow surface through which rule
// evaluation may produce an observable side effect. It is passed
// explicitly into each evaluation and holds for exactly one trace.
// Nothing else (network, storage, files) is reachable from rule code.
type Capabilities interface {
	// EmitSignal records a signal for the trace under evaluation.
	EmitSignal(ruleID, ruleName string, context map[string]any, matched []Span) error
}
