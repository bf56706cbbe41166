package engine

import (
	"errors"
	"testing"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

func TestParseAcceptsGrammar(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"has span", `trace has span where service == "payments"`},
		{"count", `count(span where operation == "db.query") > 3`},
		{"order", `span where service == "auth" before span where service == "db"`},
		{"and", `trace has span where service == "a" and trace has span where service == "b"`},
		{"or", `trace has span where service == "a" or trace has span where service == "b"`},
		{"not", `not trace has span where service == "a"`},
		{"parens", `(trace has span where service == "a" or trace has span where service == "b") and not trace has span where service == "c"`},
		{"attribute access", `trace has span where attributes["http.status"] == 500`},
		{"expr combinators", `trace has span where service == "a" && duration_ms > 100.5 || operation == "x"`},
		{"exists", `trace has span where attributes["db.query"] exists`},
		{"exists with negation", `trace has span where attributes["db.query"] exists and not trace has span where attributes["audit.log"] exists`},
		{"count equals zero", `count(span where service == "x") == 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.source); err != nil {
				t.Fatalf("parse(%q) = %v, want nil", tt.source, err)
			}
		})
	}
}

func TestParseFilterBoundaries(t *testing.T) {
	// Rule-level keywords end a filter; the same words inside
	// brackets or as expression operators do not.
	root, err := parse(`trace has span where attributes["db.query"] exists and not trace has span where attributes["audit.log"] exists`)
	if err != nil {
		t.Fatal(err)
	}

	and, ok := root.(andNode)
	if !ok {
		t.Fatalf("root = %T, want andNode", root)
	}
	left, ok := and.Left.(hasSpanNode)
	if !ok {
		t.Fatalf("left = %T, want hasSpanNode", and.Left)
	}
	if want := `( attributes [ "db.query" ] != nil )`; left.Filter.expr != want {
		t.Errorf("left filter expr = %q, want %q", left.Filter.expr, want)
	}
	not, ok := and.Right.(notNode)
	if !ok {
		t.Fatalf("right = %T, want notNode", and.Right)
	}
	right, ok := not.Child.(hasSpanNode)
	if !ok {
		t.Fatalf("not child = %T, want hasSpanNode", not.Child)
	}
	if want := `( attributes [ "audit.log" ] != nil )`; right.Filter.expr != want {
		t.Errorf("right filter expr = %q, want %q", right.Filter.expr, want)
	}
}

func TestParseFilterKeepsBracketedClose(t *testing.T) {
	// The ")" closing count() is a boundary, but brackets opened
	// inside the filter keep their closer.
	root, err := parse(`count(span where attributes["k"] == "v") >= 2`)
	if err != nil {
		t.Fatal(err)
	}
	cn, ok := root.(countNode)
	if !ok {
		t.Fatalf("root = %T, want countNode", root)
	}
	if cn.Op != ">=" || cn.N != 2 {
		t.Errorf("count op/n = %q/%d, want >=/2", cn.Op, cn.N)
	}
	if want := `attributes [ "k" ] == "v"`; cn.Filter.expr != want {
		t.Errorf("filter expr = %q, want %q", cn.Filter.expr, want)
	}
}

func TestParseExistsRewrite(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"bracketed attribute",
			`trace has span where attributes["db.query"] exists`,
			`( attributes [ "db.query" ] != nil )`,
		},
		{
			"bare identifier",
			`trace has span where parent_span_id exists`,
			`( parent_span_id != nil )`,
		},
		{
			"inside conjunction",
			`trace has span where service == "a" && attributes["x"] exists`,
			`service == "a" && ( attributes [ "x" ] != nil )`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := parse(tt.source)
			if err != nil {
				t.Fatal(err)
			}
			hs, ok := root.(hasSpanNode)
			if !ok {
				t.Fatalf("root = %T, want hasSpanNode", root)
			}
			if hs.Filter.expr != tt.want {
				t.Errorf("expr = %q, want %q", hs.Filter.expr, tt.want)
			}
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty", ``},
		{"unterminated string", `trace has span where service == "oops`},
		{"missing filter", `trace has span where`},
		{"missing keyword", `trace span where service == "a"`},
		{"count without operator", `count(span where service == "a") 3`},
		{"count non-integer", `count(span where service == "a") > 1.5`},
		{"trailing garbage", `trace has span where service == "a" trace`},
		{"unclosed paren", `(trace has span where service == "a"`},
		{"exists without operand", `trace has span where exists`},
		{"unexpected character", `trace has span where service == "a" # nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.source)
			if err == nil {
				t.Fatalf("parse(%q) succeeded, want syntax error", tt.source)
			}
			var syntaxErr core.SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("error = %v (%T), want core.SyntaxError", err, err)
			}
			if syntaxErr.Line < 1 || syntaxErr.Column < 1 {
				t.Errorf("position = %d:%d, want 1-based", syntaxErr.Line, syntaxErr.Column)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	// The bad token starts on line 2.
	_, err := parse("trace has span where service == \"a\"\nand trace where")
	if err == nil {
		t.Fatal("want syntax error")
	}
	var syntaxErr core.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("error = %T, want core.SyntaxError", err)
	}
	if syntaxErr.Line != 2 {
		t.Errorf("line = %d, want 2", syntaxErr.Line)
	}
}

func TestCompileRejectsUnknownNames(t *testing.T) {
	rule := core.Rule{
		ID:     "r1",
		Name:   "bad filter",
		Source: `trace has span where nonsense == "a"`,
	}
	_, err := Compile(rule)
	if err == nil {
		t.Fatal("want semantic error for unknown identifier")
	}
	var semanticErr core.SemanticError
	if !errors.As(err, &semanticErr) {
		t.Fatalf("error = %v (%T), want core.SemanticError", err, err)
	}
}

func TestCompileAcceptsFullEnvironment(t *testing.T) {
	rule := core.Rule{
		ID:   "r1",
		Name: "all fields",
		Source: `trace has span where service == "a" && operation == "b" && ` +
			`span_id != "" && parent_span_id == "" && duration_ms > 1 && attributes["k"] exists`,
	}
	if _, err := Compile(rule); err != nil {
		t.Fatalf("Compile = %v, want nil", err)
	}
}
