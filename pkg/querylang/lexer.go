package querylang

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokNumber
	tokComma
	tokLParen
	tokRParen
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

// lex splits a REM-SQL statement into tokens, honoring single-quoted
// strings with '' as an escaped quote.
func lex(src string) ([]token, error) {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '=' || c == '>' || c == '<':
			op := string(c)
			i++
			if i < n && src[i] == '=' && (op == ">" || op == "<") {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
		case c == '\'':
			j := i + 1
			var b strings.Builder
			closed := false
			for j < n {
				if src[j] == '\'' {
					if j+1 < n && src[j+1] == '\'' {
						b.WriteByte('\'')
						j += 2
						continue
					}
					closed = true
					j++
					break
				}
				b.WriteByte(src[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal starting at %d", i)
			}
			toks = append(toks, token{tokString, b.String()})
			i = j
		case isWordStart(c):
			j := i + 1
			for j < n && isWordPart(src[j]) {
				j++
			}
			word := src[i:j]
			kind := tokWord
			if isNumber(word) {
				kind = tokNumber
			}
			toks = append(toks, token{kind, word})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isWordStart(c byte) bool {
	return c == '_' || c == '-' || c == '*' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isWordPart(c byte) bool {
	return isWordStart(c)
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
