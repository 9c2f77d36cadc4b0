package shared

import (
	"regexp"
	"strings"
)

var (
	bracketedRe = regexp.MustCompile(`(?i)[\(\[\{].*?[\)\]\}]`)
	// Unicode-aware word boundaries; RE2 \b is ASCII-only.
	noiseWordRe = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])(?:official|mv|performance|original|ver\.?)([^\p{L}\p{N}_]|$)`)
)

// NormalizeTitle strips bracketed annotations and marketing words from a raw title to improve search recall.
//
// Whitespace runs collapse to single spaces and the result is trimmed.
// Cleaning repeats until nothing changes, so the function is idempotent even when a removal exposes new noise.
func NormalizeTitle(raw string) string {
	title := cleanTitleOnce(raw)
	for {
		next := cleanTitleOnce(title)
		if next == title {
			return title
		}
		title = next
	}
}

func cleanTitleOnce(s string) string {
	s = bracketedRe.ReplaceAllString(s, "")
	s = noiseWordRe.ReplaceAllString(s, "${1}${2}")
	return strings.Join(strings.Fields(s), " ")
}
