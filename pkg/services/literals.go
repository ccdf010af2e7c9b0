package services

import (
	"bytes"
	"strings"
)

const maskByte = 'x'

// maskedQuery is a query with every quoted region overwritten byte-for-byte,
// so offsets found in masked line up with the original text.
type maskedQuery struct {
	original string
	masked   string
	literals []string // decoded single-quoted string literals, in order
}

// maskLiterals blanks the contents of single-quoted literals and
// double-quoted identifiers, and replaces -- line comments and /* */ block
// comments with spaces. Doubled quotes and backslash escapes stay inside the
// literal. An unterminated literal or block comment runs to the end of the
// text.
func maskLiterals(text string) maskedQuery {
	buf := []byte(text)
	var literals []string

	var quote byte
	var current strings.Builder
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if quote == 0 {
			switch {
			case c == '\'' || c == '"':
				quote = c
				current.Reset()
			case c == '-' && i+1 < len(buf) && buf[i+1] == '-':
				for ; i < len(buf) && buf[i] != '\n'; i++ {
					buf[i] = ' '
				}
			case c == '/' && i+1 < len(buf) && buf[i+1] == '*':
				i = blankBlockComment(buf, i)
			}
			continue
		}

		switch {
		case c == '\\' && quote == '\'' && i+1 < len(buf):
			current.WriteByte(buf[i+1])
			buf[i] = maskByte
			buf[i+1] = maskByte
			i++
		case c == quote && i+1 < len(buf) && buf[i+1] == quote:
			current.WriteByte(c)
			buf[i] = maskByte
			buf[i+1] = maskByte
			i++
		case c == quote:
			if quote == '\'' {
				literals = append(literals, current.String())
			}
			quote = 0
		default:
			current.WriteByte(c)
			buf[i] = maskByte
		}
	}
	if quote == '\'' {
		literals = append(literals, current.String())
	}

	return maskedQuery{original: text, masked: string(buf), literals: literals}
}

// blankBlockComment blanks the comment opening at start, keeping newlines,
// and returns the index of its last byte.
func blankBlockComment(buf []byte, start int) int {
	end := len(buf) - 1
	if n := bytes.Index(buf[start+2:], []byte("*/")); n >= 0 {
		end = start + 2 + n + 1
	}
	for i := start; i <= end; i++ {
		if buf[i] != '\n' {
			buf[i] = ' '
		}
	}
	return end
}

// slice returns the original text for a span located in the masked text.
func (m maskedQuery) slice(start, end int) string {
	if start < 0 || end > len(m.original) || start > end {
		return ""
	}
	return m.original[start:end]
}

// splitTopLevel splits s on commas outside parentheses. A closing parenthesis
// with no opener ends the list, which trims trailing text of an enclosing
// window or subquery.
func splitTopLevel(s string) []string {
	masked := maskLiterals(s).masked

	var parts []string
	depth, start := 0, 0
	end := len(s)
scan:
	for i := 0; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				end = i
				break scan
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:end])

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
