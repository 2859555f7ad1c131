package llm

import (
	"regexp"
	"strings"
	"unicode"
)

// maxEmbeddedLength caps any single piece of external text embedded in a
// prompt.
const maxEmbeddedLength = 200

// Prompt-injection role markers stripped from external text before it is
// embedded. Upstream headlines and stored memory text are untrusted.
var roleMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(system|assistant|user|human)\s*:`),
	regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(prior|previous|above)\s+instructions?\b`),
	regexp.MustCompile(`(?i)\bdisregard\s+(all\s+)?(prior|previous|above)\s+instructions?\b`),
	regexp.MustCompile(`\bIGNORE\b`),
}

// Sanitize prepares one piece of externally-sourced text for prompt
// embedding: control characters stripped, role markers removed, length
// capped, and quotes/backslashes escaped so the text cannot break out of the
// structured prompt.
func Sanitize(s string) string {
	// Control characters first so markers split by them are still caught.
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)

	for _, p := range roleMarkerPatterns {
		s = p.ReplaceAllString(s, "")
	}

	s = strings.Join(strings.Fields(s), " ")

	if len(s) > maxEmbeddedLength {
		s = s[:maxEmbeddedLength]
	}

	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)

	return strings.TrimSpace(s)
}

// SanitizeAll sanitizes a batch of headlines, dropping any that end up
// empty.
func SanitizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if clean := Sanitize(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
