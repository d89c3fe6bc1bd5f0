// Package textnorm canonicalizes and tokenizes user text for indexing.
// Every function is pure and deterministic; normalization is idempotent.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenRegex matches runs of letters and digits. Numeric tokens are kept.
var tokenRegex = regexp.MustCompile(`[\pL\pN]+`)

// whitespaceRegex collapses runs of spaces and tabs.
var whitespaceRegex = regexp.MustCompile(`[ \t]+`)

// blankLineRegex collapses runs of blank lines.
var blankLineRegex = regexp.MustCompile(`\n{3,}`)

// stripMarks removes combining marks after compatibility decomposition,
// mapping accented letters to their unaccented base.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Normalize canonicalizes text for indexing: compatibility decomposition
// (ligatures and fullwidth forms collapse to base characters), diacritic
// stripping, then case folding to lowercase.
//
// Normalize(Normalize(s)) == Normalize(s) for all s.
func Normalize(text string) string {
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		// The transform chain cannot fail on valid UTF-8; invalid bytes
		// pass through unchanged rather than aborting normalization.
		stripped = text
	}
	return strings.ToLower(stripped)
}

// Clean collapses horizontal whitespace, unifies line breaks to \n,
// and trims the result. It does not change letter content.
func Clean(text string) string {
	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")
	cleaned = whitespaceRegex.ReplaceAllString(cleaned, " ")
	cleaned = blankLineRegex.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// PrepareForIndexing normalizes and cleans text in one pass. This is the
// form stored in the full-text mirror tables.
func PrepareForIndexing(text string) string {
	return Clean(Normalize(text))
}

// ExtractTokens splits text on non-alphanumeric boundaries and returns
// the normalized words in document order. Empty and punctuation-only
// input yields an empty slice, never nil.
func ExtractTokens(text string) []string {
	words := tokenRegex.FindAllString(Normalize(text), -1)
	if words == nil {
		return []string{}
	}
	return words
}

// ExtractUniqueTokens returns the set of distinct tokens in text.
func ExtractUniqueTokens(text string) map[string]struct{} {
	tokens := ExtractTokens(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// WordCount reports the number of indexable words in text.
func WordCount(text string) int {
	return len(tokenRegex.FindAllString(text, -1))
}
