// Package search ranks repositories and tags against a fuzzy query.
package search

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Match is one ranked search hit.
type Match struct {
	Value string `json:"value"`
	Score int    `json:"score"`
	// Indexes of the matched characters in Value, for highlighting.
	Indexes []int `json:"indexes,omitempty"`
}

// Rank returns the candidates matching query, best first. An empty
// query matches everything in the original order with a zero score.
func Rank(query string, candidates []string) []Match {
	if query == "" {
		out := make([]Match, len(candidates))
		for i, c := range candidates {
			out[i] = Match{Value: c}
		}
		return out
	}

	found := fuzzy.Find(query, candidates)
	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{
			Value:   m.Str,
			Score:   m.Score,
			Indexes: m.MatchedIndexes,
		}
	}
	// fuzzy.Find already sorts by score; keep ties stable by value so
	// results are deterministic across runs.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Filter returns just the matching values, best first.
func Filter(query string, candidates []string) []string {
	matches := Rank(query, candidates)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Value
	}
	return out
}
