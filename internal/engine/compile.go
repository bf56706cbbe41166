package engine

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// CompiledRule is a rule plus its executable form.
type CompiledRule struct {
	Rule core.Rule
	root node
}

// spanEnv is the complete environment a filter expression may touch.
// Nothing outside it is reachable from rule source; unknown names are
// rejected at compile time.
func spanEnv(s core.Span) map[string]any {
	attrs := s.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"service":        s.Service,
		"operation":      s.Operation,
		"span_id":        s.SpanID,
		"parent_span_id": s.ParentSpanID,
		"duration_ms":    float64(s.Duration()) / float64(time.Millisecond),
		"attributes":     attrs,
	}
}

// Compile turns a rule's source text into its executable form.
// Malformed input yields a core.SyntaxError with line/column;
// references outside the span environment yield a core.SemanticError.
func Compile(rule core.Rule) (CompiledRule, error) {
	root, err := parse(rule.Source)
	if err != nil {
		return CompiledRule{}, err
	}
	if err := compileFilters(root); err != nil {
		return CompiledRule{}, err
	}
	return CompiledRule{Rule: rule, root: root}, nil
}

func compileFilters(n node) error {
	switch v := n.(type) {
	case andNode:
		if err := compileFilters(v.Left); err != nil {
			return err
		}
		return compileFilters(v.Right)
	case orNode:
		if err := compileFilters(v.Left); err != nil {
			return err
		}
		return compileFilters(v.Right)
	case notNode:
		return compileFilters(v.Child)
	case hasSpanNode:
		return compileFilter(v.Filter)
	case countNode:
		return compileFilter(v.Filter)
	case orderNode:
		if err := compileFilter(v.First); err != nil {
			return err
		}
		return compileFilter(v.Second)
	default:
		return fmt.Errorf("unknown ast node %T", n)
	}
}

func compileFilter(f *spanFilter) error {
	program, err := expr.Compile(f.expr,
		expr.Env(spanEnv(core.Span{})),
		expr.AsBool(),
	)
	if err != nil {
		return core.SemanticError{
			Reason: fmt.Sprintf("filter %q at %d:%d: %v", f.Source, f.Line, f.Col, err),
		}
	}
	f.Program = program
	return nil
}
