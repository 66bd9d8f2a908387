package search

import (
	"testing"
)

func TestRank(t *testing.T) {
	t.Parallel()

	candidates := []string{"library/alpine", "library/nginx", "app/api", "app/alpina"}

	matches := Rank("alpine", candidates)
	if len(matches) == 0 {
		t.Fatal("Rank() returned no matches")
	}
	if matches[0].Value != "library/alpine" {
		t.Fatalf("Rank() best = %q, want library/alpine", matches[0].Value)
	}
	if len(matches[0].Indexes) == 0 {
		t.Fatal("Rank() best match has no highlight indexes")
	}
}

func TestRankEmptyQuery(t *testing.T) {
	t.Parallel()

	candidates := []string{"b", "a", "c"}
	matches := Rank("", candidates)
	if len(matches) != len(candidates) {
		t.Fatalf("Rank(\"\") len = %d, want %d", len(matches), len(candidates))
	}
	for i, m := range matches {
		if m.Value != candidates[i] {
			t.Fatalf("Rank(\"\") order changed: got %q at %d, want %q", m.Value, i, candidates[i])
		}
	}
}

func TestFilterNoMatch(t *testing.T) {
	t.Parallel()

	if got := Filter("zzz", []string{"alpha", "beta"}); len(got) != 0 {
		t.Fatalf("Filter() = %v, want empty", got)
	}
}
