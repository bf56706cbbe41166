package engine

import "github.com/expr-lang/expr/vm"

// node is one node of a parsed rule. The tree is evaluated directly;
// there is no separate bytecode form for the combinators, only the
// leaf filters are compiled programs.
type node interface {
	astNode()
}

type andNode struct {
	Left, Right node
}

type orNode struct {
	Left, Right node
}

type notNode struct {
	Child node
}

// hasSpanNode is `trace has span where <filter>`.
type hasSpanNode struct {
	Filter *spanFilter
}

// countNode is `count(span where <filter>) <op> <n>`.
type countNode struct {
	Filter *spanFilter
	Op     string
	N      int
}

// orderNode is `span where <a> before span where <b>`: some span
// matching a starts before some span matching b.
type orderNode struct {
	First, Second *spanFilter
}

func (andNode) astNode()     {}
func (orNode) astNode()      {}
func (notNode) astNode()     {}
func (hasSpanNode) astNode() {}
func (countNode) astNode()   {}
func (orderNode) astNode()   {}

// spanFilter is a compiled per-span predicate. Source is the filter
// text exactly as the author wrote it (before the `exists` rewrite),
// kept for diagnostics.
type spanFilter struct {
	Source string
	Line   int
	Col    int

	// expr is the source after the `exists` rewrite; this is what
	// the expression compiler sees.
	expr    string
	Program *vm.Program
}
