package services

import (
	"regexp"
	"strings"
)

var keywordPattern = regexp.MustCompile(`(?i)^[a-z_]+`)

// LeadingKeyword returns the uppercased first word of text, ignoring leading
// whitespace and comments. It is empty when text does not open with a word.
func LeadingKeyword(text string) string {
	return leadingKeyword(maskLiterals(text).masked)
}

func leadingKeyword(masked string) string {
	return strings.ToUpper(keywordPattern.FindString(strings.TrimSpace(masked)))
}

// StatementKeywords returns the keyword of every statement in text, split on
// semicolons outside literals and comments. Opening parentheses are skipped,
// EXPLAIN [ANALYZE] reports the statement it wraps and WITH reports the
// statement that follows its common table expressions.
func StatementKeywords(text string) []string {
	var keywords []string
	for _, stmt := range strings.Split(maskLiterals(text).masked, ";") {
		stmt = strings.TrimLeft(stmt, "( \t\r\n")
		if stmt == "" {
			continue
		}
		keywords = append(keywords, statementKeyword(topLevelWords(stmt)))
	}
	return keywords
}

func statementKeyword(words []string) string {
	if len(words) == 0 {
		return ""
	}
	switch words[0] {
	case "EXPLAIN":
		rest := words[1:]
		if len(rest) > 0 && rest[0] == "ANALYZE" {
			rest = rest[1:]
		}
		if kw := statementKeyword(rest); kw != "" {
			return kw
		}
	case "WITH":
		for _, w := range words[1:] {
			switch w {
			case "SELECT", "VALUES", "INSERT", "UPDATE", "DELETE":
				return w
			}
		}
	}
	return words[0]
}

// topLevelWords returns the uppercased words of a masked statement that sit
// outside parentheses. Words start with a letter or underscore.
func topLevelWords(masked string) []string {
	var words []string
	depth := 0
	for i := 0; i < len(masked); i++ {
		c := masked[i]
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
		case isWordStart(c):
			j := i + 1
			for j < len(masked) && (isWordStart(masked[j]) || (masked[j] >= '0' && masked[j] <= '9')) {
				j++
			}
			if depth <= 0 {
				words = append(words, strings.ToUpper(masked[i:j]))
			}
			i = j - 1
		}
	}
	return words
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
