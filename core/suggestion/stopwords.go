package suggestion

import (
	"strings"

	"github.com/goto/sift/core/engine"
)

// StopWords is a set of words compared literally and without case. Words
// such as "%" or "a_b" never act as patterns.
type StopWords map[string]struct{}

func NewStopWords(words []string) StopWords {
	sw := make(StopWords, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		sw[Fold(w)] = struct{}{}
	}
	return sw
}

func (sw StopWords) Contains(token string) bool {
	_, ok := sw[Fold(token)]
	return ok
}

// Allows reports whether the candidate survives the stop words under mode.
func (sw StopWords) Allows(candidate string, mode engine.StopWordsMode) bool {
	if len(sw) == 0 || mode == engine.StopWordsNone || mode == "" {
		return true
	}
	tokens := strings.Fields(candidate)
	if len(tokens) == 0 {
		return false
	}

	first, last := tokens[0], tokens[len(tokens)-1]
	switch mode {
	case engine.StopWordsStart:
		return !sw.boundary(first)
	case engine.StopWordsEnd:
		return !sw.boundary(last)
	case engine.StopWordsStartEnd:
		return !sw.boundary(first) && !sw.boundary(last)
	}
	return true
}

// boundary matches a boundary token as is or stripped of its punctuation, so
// "The," is the stop word "the".
func (sw StopWords) boundary(token string) bool {
	return sw.Contains(token) || sw.Contains(Clean(token))
}
