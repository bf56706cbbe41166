// Package engine compiles the trace pattern language and evaluates
// rules against completed traces. Evaluation is pure over trace data:
// the only reachable side effect is signal emission through the
// explicitly passed capability value.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/metrics"
)

const (
	DefaultStepBudget  = 100_000
	DefaultEvalTimeout = 2 * time.Second
)

// Options bound a single evaluation. Exceeding either bound fails
// closed with core.ErrEvaluationTimeout.
type Options struct {
	// StepBudget caps filter executions per rule evaluation.
	StepBudget int

	// Timeout caps wall-clock time per rule evaluation.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.StepBudget <= 0 {
		o.StepBudget = DefaultStepBudget
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultEvalTimeout
	}
	return o
}

// Engine holds one tenant's compiled rules in emission order:
// severity descending, rule id ascending within equal severity.
type Engine struct {
	rules []CompiledRule
}

func New(rules []CompiledRule) *Engine {
	ordered := make([]CompiledRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rule.Severity != ordered[j].Rule.Severity {
			return ordered[i].Rule.Severity > ordered[j].Rule.Severity
		}
		return ordered[i].Rule.ID < ordered[j].Rule.ID
	})
	return &Engine{rules: ordered}
}

// Rules returns the compiled rules in emission order.
func (e *Engine) Rules() []CompiledRule {
	return e.rules
}

// Outcome is the per-rule result of a trace evaluation.
type Outcome struct {
	Rule  core.Rule
	Match *core.Match
	Err   error
}

// EvaluateTrace runs every rule against the trace in emission order.
// A rule exceeding its budget is reported as a failed match for that
// rule only; sibling rules still run. Matches are emitted through
// caps before the next rule is evaluated.
func (e *Engine) EvaluateTrace(ctx context.Context, trace core.Trace, caps core.Capabilities, opts Options) []Outcome {
	opts = opts.withDefaults()
	outcomes := make([]Outcome, 0, len(e.rules))

	for _, cr := range e.rules {
		match, err := EvaluateRule(ctx, cr, trace, opts)
		outcome := Outcome{Rule: cr.Rule, Match: match, Err: err}

		if err != nil {
			metrics.RuleTimeouts.Inc()
			log.Warn().
				Err(err).
				Str("rule", cr.Rule.ID).
				Str("trace", trace.TraceID).
				Msg("rule evaluation failed")
		} else if match != nil && caps != nil {
			emitCtx := map[string]any{
				"trace_id": trace.TraceID,
				"severity": cr.Rule.Severity.String(),
			}
			if cr.Rule.Category != "" {
				emitCtx["category"] = cr.Rule.Category
			}
			if err := caps.EmitSignal(cr.Rule.ID, cr.Rule.Name, emitCtx, match.Spans); err != nil {
				outcome.Err = err
			}
		}

		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// EvaluateRule evaluates one compiled rule against one trace.
// It is deterministic: the same rule and trace always produce the
// same match. A nil match with a nil error means the rule did not fire.
func EvaluateRule(ctx context.Context, cr CompiledRule, trace core.Trace, opts Options) (*core.Match, error) {
	opts = opts.withDefaults()

	evalCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	st := &evalState{
		ctx:    evalCtx,
		trace:  trace,
		budget: opts.StepBudget,
	}

	matched, witnesses, err := st.eval(cr.root)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, nil
	}

	spans := dedupeSpans(witnesses)
	core.SortSpans(spans)
	return &core.Match{
		RuleID:   cr.Rule.ID,
		RuleName: cr.Rule.Name,
		Spans:    spans,
	}, nil
}

type evalState struct {
	ctx    context.Context
	trace  core.Trace
	budget int
	steps  int
}

// step burns one unit of budget. The context deadline is checked on
// the same cadence so a hostile filter cannot hang a shared worker.
func (st *evalState) step() error {
	st.steps++
	if st.steps > st.budget {
		return core.ErrEvaluationTimeout
	}
	if st.steps%64 == 0 {
		if err := st.ctx.Err(); err != nil {
			return core.ErrEvaluationTimeout
		}
	}
	return nil
}

func (st *evalState) eval(n node) (bool, []core.Span, error) {
	switch v := n.(type) {
	case andNode:
		lOK, lSpans, err := st.eval(v.Left)
		if err != nil {
			return false, nil, err
		}
		rOK, rSpans, err := st.eval(v.Right)
		if err != nil {
			return false, nil, err
		}
		if lOK && rOK {
			return true, append(lSpans, rSpans...), nil
		}
		return false, nil, nil

	case orNode:
		// Both branches always run so witness sets are deterministic.
		lOK, lSpans, err := st.eval(v.Left)
		if err != nil {
			return false, nil, err
		}
		rOK, rSpans, err := st.eval(v.Right)
		if err != nil {
			return false, nil, err
		}
		switch {
		case lOK && rOK:
			return true, append(lSpans, rSpans...), nil
		case lOK:
			return true, lSpans, nil
		case rOK:
			return true, rSpans, nil
		default:
			return false, nil, nil
		}

	case notNode:
		ok, _, err := st.eval(v.Child)
		if err != nil {
			return false, nil, err
		}
		// A negation holds no witness spans.
		return !ok, nil, nil

	case hasSpanNode:
		spans, err := st.matching(v.Filter)
		if err != nil {
			return false, nil, err
		}
		return len(spans) > 0, spans, nil

	case countNode:
		spans, err := st.matching(v.Filter)
		if err != nil {
			return false, nil, err
		}
		if compareCount(len(spans), v.Op, v.N) {
			return true, spans, nil
		}
		return false, nil, nil

	case orderNode:
		first, err := st.matching(v.First)
		if err != nil {
			return false, nil, err
		}
		second, err := st.matching(v.Second)
		if err != nil {
			return false, nil, err
		}
		// Witness pair: the earliest qualifying pair in span order.
		for _, a := range first {
			for _, b := range second {
				if a.SpanID != b.SpanID && a.StartTime.Before(b.StartTime) {
					return true, []core.Span{a, b}, nil
				}
			}
		}
		return false, nil, nil

	default:
		return false, nil, fmt.Errorf("unknown ast node %T", n)
	}
}

// matching returns the trace's spans satisfying the filter, in the
// trace's deterministic span order.
func (st *evalState) matching(f *spanFilter) ([]core.Span, error) {
	var out []core.Span
	for _, span := range st.trace.Spans {
		if err := st.step(); err != nil {
			return nil, err
		}
		ok, err := runFilter(f.Program, span)
		if err != nil {
			// A filter error on one span fails the whole rule: a
			// half-evaluated trace must not produce a half-true match.
			return nil, fmt.Errorf("filter %q: %w", f.Source, err)
		}
		if ok {
			out = append(out, span)
		}
	}
	return out, nil
}

func runFilter(program *vm.Program, span core.Span) (bool, error) {
	res, err := vm.Run(program, spanEnv(span))
	if err != nil {
		return false, err
	}
	b, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("filter did not evaluate to a boolean")
	}
	return b, nil
}

func compareCount(have int, op string, want int) bool {
	switch op {
	case "==":
		return have == want
	case "!=":
		return have != want
	case ">":
		return have > want
	case ">=":
		return have >= want
	case "<":
		return have < want
	case "<=":
		return have <= want
	default:
		return false
	}
}

func dedupeSpans(spans []core.Span) []core.Span {
	seen := make(map[string]struct{}, len(spans))
	out := make([]core.Span, 0, len(spans))
	for _, s := range spans {
		if _, dup := seen[s.SpanID]; dup {
			continue
		}
		seen[s.SpanID] = struct{}{}
		out = append(out, s)
	}
	return out
}
