package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenPunct
	tokenEOF
)

// token keeps the raw lexeme so filter expressions can be rebuilt
// verbatim for the expression compiler.
type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) is(text string) bool {
	return t.text == text
}

// keyword reports whether the token is the given rule-level keyword.
// Keywords are case-sensitive and always lowercase.
func (t token) keyword(kw string) bool {
	return t.kind == tokenIdent && t.text == kw
}

// lex splits rule source into tokens. Positions are 1-based.
func lex(source string) ([]token, error) {
	var (
		tokens []token
		line   = 1
		col    = 1
	)

	runes := []rune(source)
	i := 0

	advance := func(n int) {
		for k := 0; k < n; k++ {
			if runes[i+k] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		i += n
	}

	for i < len(runes) {
		r := runes[i]

		if unicode.IsSpace(r) {
			advance(1)
			continue
		}

		startLine, startCol := line, col

		switch {
		case r == '"' || r == '\'':
			quote := r
			j := i + 1
			for j < len(runes) {
				if runes[j] == '\\' && j+1 < len(runes) {
					j += 2
					continue
				}
				if runes[j] == quote {
					break
				}
				j++
			}
			if j >= len(runes) {
				return nil, core.SyntaxError{
					Line:    startLine,
					Column:  startCol,
					Message: "unterminated string literal",
				}
			}
			text := string(runes[i : j+1])
			tokens = append(tokens, token{tokenString, text, startLine, startCol})
			advance(j + 1 - i)

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokenNumber, string(runes[i:j]), startLine, startCol})
			advance(j - i)

		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokenIdent, string(runes[i:j]), startLine, startCol})
			advance(j - i)

		case strings.ContainsRune("()[]{},.+-*/%", r):
			tokens = append(tokens, token{tokenPunct, string(r), startLine, startCol})
			advance(1)

		case strings.ContainsRune("=!<>&|", r):
			// greedy two-character operators
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch two {
			case "==", "!=", "<=", ">=", "&&", "||":
				tokens = append(tokens, token{tokenPunct, two, startLine, startCol})
				advance(2)
			default:
				tokens = append(tokens, token{tokenPunct, string(r), startLine, startCol})
				advance(1)
			}

		default:
			return nil, core.SyntaxError{
				Line:    startLine,
				Column:  startCol,
				Message: fmt.Sprintf("unexpected character %q", string(r)),
			}
		}
	}

	tokens = append(tokens, token{tokenEOF, "", line, col})
	return tokens, nil
}
