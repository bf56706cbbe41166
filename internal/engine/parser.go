package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// parser builds the rule AST from the token stream.
//
// Grammar:
//
//	rule    := or
//	or      := and ("or" and)*
//	and     := unary ("and" unary)*
//	unary   := "not" unary | primary
//	primary := "(" or ")"
//	         | "trace" "has" "span" "where" filter
//	         | "count" "(" "span" "where" filter ")" cmp number
//	         | "span" "where" filter "before" "span" "where" filter
//
// Filters are expression-language snippets per span; inside a filter
// the combinators are `&&`, `||` and `!`, never the rule-level
// keywords. A filter ends at the first `and`, `or`, `before` or
// unbalanced `)` outside brackets.
type parser struct {
	tokens []token
	pos    int
}

func parse(source string) (node, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.peek().is("") {
		return nil, p.errorf("unexpected %q after end of rule", p.peek().text)
	}
	return root, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.peek()
	return core.SyntaxError{
		Line:    t.line,
		Column:  t.col,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) expectKeyword(kw string) error {
	if !p.peek().keyword(kw) {
		return p.errorf("expected %q, got %q", kw, p.peek().text)
	}
	p.next()
	return nil
}

func (p *parser) expectPunct(text string) error {
	t := p.peek()
	if t.kind != tokenPunct || t.text != text {
		return p.errorf("expected %q, got %q", text, t.text)
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().keyword("not") {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{Child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()

	switch {
	case t.kind == tokenPunct && t.text == "(":
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil

	case t.keyword("trace"):
		p.next()
		if err := p.expectKeyword("has"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("span"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("where"); err != nil {
			return nil, err
		}
		filter, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		return hasSpanNode{Filter: filter}, nil

	case t.keyword("count"):
		p.next()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("span"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("where"); err != nil {
			return nil, err
		}
		filter, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		op := p.peek()
		switch op.text {
		case "==", "!=", ">", ">=", "<", "<=":
			p.next()
		default:
			return nil, p.errorf("expected comparison operator after count(), got %q", op.text)
		}
		num := p.peek()
		if num.kind != tokenNumber {
			return nil, p.errorf("expected number after %q, got %q", op.text, num.text)
		}
		n, err := strconv.Atoi(num.text)
		if err != nil {
			return nil, p.errorf("count comparisons take an integer, got %q", num.text)
		}
		p.next()
		return countNode{Filter: filter, Op: op.text, N: n}, nil

	case t.keyword("span"):
		p.next()
		if err := p.expectKeyword("where"); err != nil {
			return nil, err
		}
		first, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("before"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("span"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("where"); err != nil {
			return nil, err
		}
		second, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		return orderNode{First: first, Second: second}, nil

	default:
		return nil, p.errorf("expected 'trace', 'count', 'span', 'not' or '(', got %q", t.text)
	}
}

// filterBoundary are the rule-level keywords that terminate a filter.
var filterBoundary = map[string]struct{}{
	"and":    {},
	"or":     {},
	"before": {},
}

// parseFilter collects filter tokens up to the next rule-level
// boundary and rewrites the postfix `exists` operator into an
// expression the compiler understands.
func (p *parser) parseFilter() (*spanFilter, error) {
	start := p.peek()
	var (
		raw   []string
		parts []string
		depth int
	)

	for {
		t := p.peek()
		if t.kind == tokenEOF {
			break
		}
		if depth == 0 {
			if _, boundary := filterBoundary[t.text]; boundary && t.kind == tokenIdent {
				break
			}
			if t.kind == tokenPunct && t.text == ")" {
				break
			}
		}

		switch {
		case t.kind == tokenPunct && (t.text == "(" || t.text == "["):
			depth++
		case t.kind == tokenPunct && (t.text == ")" || t.text == "]"):
			if depth > 0 {
				depth--
			}
		}

		if t.keyword("exists") {
			rewritten, err := rewriteExists(parts)
			if err != nil {
				return nil, core.SyntaxError{Line: t.line, Column: t.col, Message: err.Error()}
			}
			parts = rewritten
			raw = append(raw, t.text)
			p.next()
			continue
		}

		raw = append(raw, t.text)
		parts = append(parts, t.text)
		p.next()
	}

	if len(parts) == 0 {
		return nil, core.SyntaxError{
			Line:    start.line,
			Column:  start.col,
			Message: "expected filter expression after 'where'",
		}
	}

	return &spanFilter{
		Source: strings.Join(raw, " "),
		Line:   start.line,
		Col:    start.col,
		expr:   strings.Join(parts, " "),
	}, nil
}

// rewriteExists turns the trailing operand of parts into an
// existence check: `attributes["k"] exists` -> `(attributes["k"] != nil)`.
func rewriteExists(parts []string) ([]string, error) {
	s := len(parts)

	// Walk backwards over one primary chain: ident ("." ident | "[" ... "]")*
	for s > 0 {
		t := parts[s-1]
		if t == "]" {
			depth := 1
			s--
			for s > 0 && depth > 0 {
				s--
				switch parts[s] {
				case "]":
					depth++
				case "[":
					depth--
				}
			}
			if depth > 0 {
				return nil, fmt.Errorf("unbalanced brackets before 'exists'")
			}
			continue
		}
		if isOperandToken(t) {
			s--
			if s > 0 && parts[s-1] == "." {
				s--
				continue
			}
			break
		}
		break
	}

	if s == len(parts) {
		return nil, fmt.Errorf("'exists' requires an attribute reference before it")
	}

	out := make([]string, 0, len(parts)+4)
	out = append(out, parts[:s]...)
	out = append(out, "(")
	out = append(out, parts[s:]...)
	out = append(out, "!=", "nil", ")")
	return out, nil
}

func isOperandToken(t string) bool {
	if t == "" {
		return false
	}
	r := rune(t[0])
	return r == '"' || r == '\'' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
