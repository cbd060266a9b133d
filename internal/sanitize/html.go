// Package sanitize turns server-supplied strings into plain text that is safe
// to print on a terminal.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips HTML markup and terminal control characters. Newlines and tabs
// are kept.
func Text(input string) string {
	if input == "" {
		return ""
	}
	plain := html.UnescapeString(StrictPolicy.Sanitize(input))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, plain)
}

// Line is Text collapsed onto a single line, for table cells.
func Line(input string) string {
	return strings.Join(strings.Fields(Text(input)), " ")
}

// Truncate shortens s to at most max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
