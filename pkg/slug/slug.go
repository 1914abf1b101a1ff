package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnumSpace = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Generate creates a URL-friendly slug from the given title.
// Lowercases, drops every character outside [a-z0-9 ] (accents included;
// upstream titles are Spanish, so "Cafetera Espresso Automática" becomes
// "cafetera-espresso-automtica"), then collapses whitespace runs into
// single hyphens.
func Generate(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonAlnumSpace.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), "-")
	return s
}

// GenerateBounded is Generate truncated to maxLen characters.
// Returns fallback when the slug comes out empty.
func GenerateBounded(title string, maxLen int, fallback string) string {
	s := Generate(title)
	if s == "" {
		return fallback
	}
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
