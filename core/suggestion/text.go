package suggestion

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength is the maximum number of runes of a stored suggestion.
const MaxLength = 190

// MinLength is the minimum number of runes of a kept suggestion.
const MinLength = 2

// trimmed are stripped from both ends of values and candidates. They are
// either punctuation or characters with a meaning in LIKE patterns and shell
// contexts.
const trimmed = "\"'`\\%_#“”‘’«».,;:!?()[]{}<>*|/&+=~^$@-"

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ")

// Clean collapses line breaks and trims the punctuation from both ends of
// raw.
func Clean(raw string) string {
	s := lineBreaks.Replace(raw)
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(trimmed, r)
	})
}

// Ngram returns the first w whitespace delimited tokens of the cleaned value,
// truncated to MaxLength. It reports false when the value has fewer than w
// tokens or when the candidate is shorter than MinLength.
func Ngram(raw string, w int) (string, bool) {
	if w <= 0 {
		return "", false
	}
	tokens := strings.Fields(Clean(raw))
	if len(tokens) < w {
		return "", false
	}

	candidate := Clean(strings.Join(tokens[:w], " "))
	candidate = Truncate(candidate, MaxLength)
	if utf8.RuneCountInString(candidate) < MinLength {
		return "", false
	}
	return candidate, true
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace)
}

// Fold returns the key used to compare texts without case.
func Fold(s string) string {
	return strings.ToLower(s)
}
