package suggestion

import (
	"sort"

	"github.com/goto/sift/core/engine"
)

// Aggregator accumulates the candidates of one indexing run. It is private
// to the run and discarded once the suggestions are persisted.
type Aggregator struct {
	widths []int
	stop   StopWords
	mode   engine.StopWordsMode

	index   map[string]int
	entries []*candidate
}

type candidate struct {
	text        string
	totalAll    int
	totalPublic int
	sites       map[int64]struct{}
}

func NewAggregator(settings engine.SuggesterSettings) *Aggregator {
	return &Aggregator{
		widths: settings.NgramWidths(),
		stop:   NewStopWords(settings.StopWords),
		mode:   settings.Mode(),
		index:  make(map[string]int),
	}
}

// Add counts one field value of one resource. public tells whether the value
// counts in the public partition too.
func (a *Aggregator) Add(value string, public bool, siteIDs []int64) {
	seen := make(map[string]struct{}, len(a.widths))
	for _, w := range a.widths {
		text, ok := Ngram(value, w)
		if !ok {
			continue
		}
		// the same text from two widths is one occurrence of the value.
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		a.count(text, public, siteIDs)
	}
}

func (a *Aggregator) count(text string, public bool, siteIDs []int64) {
	i, ok := a.index[text]
	if !ok {
		i = len(a.entries)
		a.index[text] = i
		a.entries = append(a.entries, &candidate{text: text, sites: make(map[int64]struct{})})
	}

	c := a.entries[i]
	c.totalAll++
	if public {
		c.totalPublic++
	}
	for _, id := range siteIDs {
		c.sites[id] = struct{}{}
	}
}

// Len returns the number of distinct raw candidates.
func (a *Aggregator) Len() int { return len(a.entries) }

// Suggestions filters the candidates through the stop words and merges the
// case variants. The variant with the highest total wins, the first seen on
// ties. Suggestions keep the order of their first variant.
func (a *Aggregator) Suggestions() []Suggestion {
	type group struct {
		winner *candidate
		merged Suggestion
		sites  map[int64]struct{}
	}

	groups := make(map[string]*group)
	var order []string
	for _, c := range a.entries {
		if !a.stop.Allows(c.text, a.mode) {
			continue
		}

		key := Fold(c.text)
		g, ok := groups[key]
		if !ok {
			g = &group{winner: c, sites: make(map[int64]struct{})}
			groups[key] = g
			order = append(order, key)
		} else if c.totalAll > g.winner.totalAll {
			g.winner = c
		}
		g.merged.TotalAll += c.totalAll
		g.merged.TotalPublic += c.totalPublic
		for id := range c.sites {
			g.sites[id] = struct{}{}
		}
	}

	suggestions := make([]Suggestion, 0, len(order))
	for _, key := range order {
		g := groups[key]
		s := g.merged
		s.Text = g.winner.text
		s.SiteIDs = sortedIDs(g.sites)
		suggestions = append(suggestions, s)
	}
	return suggestions
}

func sortedIDs(set map[int64]struct{}) []int64 {
	if len(set) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
