package analyzer

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy drops every tag and the bodies of script and style.
	stripPolicy = bluemonday.StrictPolicy()
	spaceRe     = regexp.MustCompile(`\s+`)
)

// PlainText reduces a filing document (full-submission SGML, HTML or
// plain text) to whitespace-normalized text.
func PlainText(doc []byte) string {
	// Block-level tags become spaces so adjacent cells don't fuse.
	s := blockTagRe.ReplaceAllString(string(doc), " $0")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var blockTagRe = regexp.MustCompile(`(?i)<(?:/?(?:p|div|tr|td|th|li|br|h[1-6]|table)\b)`)

// cleanField strips markup from a model-produced string.
func cleanField(s string) string {
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.TrimSpace(s)
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
