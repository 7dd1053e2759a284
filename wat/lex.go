package wat

import (
	"fmt"
	"strings"
)

// SyntaxError reports a problem at a source position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func errAt(line, col int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokAtom
	tokString
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// lex splits source into parens, atoms, and strings, dropping comments.
func lex(source string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	i := 0

	advance := func(n int) {
		for k := 0; k < n; k++ {
			if source[i+k] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		i += n
	}

	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			advance(1)

		case c == ';' && i+1 < len(source) && source[i+1] == ';':
			for i < len(source) && source[i] != '\n' {
				advance(1)
			}

		case c == '(' && i+1 < len(source) && source[i+1] == ';':
			startLine, startCol := line, col
			depth := 1
			advance(2)
			for i < len(source) && depth > 0 {
				if source[i] == '(' && i+1 < len(source) && source[i+1] == ';' {
					depth++
					advance(2)
				} else if source[i] == ';' && i+1 < len(source) && source[i+1] == ')' {
					depth--
					advance(2)
				} else {
					advance(1)
				}
			}
			if depth > 0 {
				return nil, errAt(startLine, startCol, "unterminated block comment")
			}

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", line: line, col: col})
			advance(1)

		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", line: line, col: col})
			advance(1)

		case c == '"':
			startLine, startCol := line, col
			advance(1)
			var b strings.Builder
			closed := false
			for i < len(source) {
				ch := source[i]
				if ch == '"' {
					advance(1)
					closed = true
					break
				}
				if ch == '\\' {
					if i+1 >= len(source) {
						break
					}
					esc := source[i+1]
					switch esc {
					case 'n':
						b.WriteByte('\n')
					case 't':
						b.WriteByte('\t')
					case 'r':
						b.WriteByte('\r')
					case '"', '\\', '\'':
						b.WriteByte(esc)
					default:
						if h, ok := hexPair(source[i+1:]); ok {
							b.WriteByte(h)
							advance(3)
							continue
						}
						return nil, errAt(line, col, "unknown escape \\%c", esc)
					}
					advance(2)
					continue
				}
				b.WriteByte(ch)
				advance(1)
			}
			if !closed {
				return nil, errAt(startLine, startCol, "unterminated string")
			}
			toks = append(toks, token{kind: tokString, text: b.String(), line: startLine, col: startCol})

		case c == ';':
			return nil, errAt(line, col, "unexpected ';'")

		default:
			startLine, startCol := line, col
			start := i
			for i < len(source) && !isDelim(source[i]) {
				advance(1)
			}
			toks = append(toks, token{kind: tokAtom, text: source[start:i], line: startLine, col: startCol})
		}
	}
	return toks, nil
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"', ';':
		return true
	}
	return false
}

func hexPair(s string) (byte, bool) {
	if len(s) < 2 {
		return 0, false
	}
	hi, ok1 := hexDigit(s[0])
	lo, ok2 := hexDigit(s[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
