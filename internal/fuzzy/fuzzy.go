// Package fuzzy implements the edit-distance suggestion fallback used when an
// exact catalog query returns no rows.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/meridian-data/datamart/internal/domain"
)

// Default fallback policy. The two legacy call sites disagreed (0.4/top-3 vs
// 0.5/top-1); these constants pin the unified policy, overridable via config.
const (
	DefaultThreshold = 0.4
	DefaultTopN      = 3
)

// Similarity returns a normalized edit-distance similarity in [0,1].
// Strings are compared case-insensitively. Two empty strings score 1.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}

	return float64(maxLen-levenshtein(a, b)) / float64(maxLen)
}

// levenshtein computes classic edit distance with a two-row table.
// Catalog titles are at most a few hundred characters, so no further
// optimization is needed.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Rank scores every record against the search term and returns the topN
// suggestions above threshold, best first. Each record's similarity is the
// max across title, domain, category, and sector; the first field reaching
// the max (in that order) tags the match.
func Rank(term string, records []domain.DataSourceRecord, threshold float64, topN int) []domain.Suggestion {
	if term == "" || topN <= 0 {
		return nil
	}

	matches := make([]domain.Suggestion, 0, len(records))
	for _, rec := range records {
		sim, field := bestField(term, rec)
		if sim > threshold {
			matches = append(matches, domain.Suggestion{
				DataSourceRecord: rec,
				Similarity:       sim,
				MatchType:        field,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}

// bestField returns the highest field similarity and which field produced it.
// Tie-break: title > domain > category > sector.
func bestField(term string, rec domain.DataSourceRecord) (float64, domain.MatchField) {
	fields := []struct {
		value string
		tag   domain.MatchField
	}{
		{rec.Title, domain.MatchTitle},
		{rec.Domain, domain.MatchDomain},
		{rec.Category, domain.MatchCategory},
		{rec.Sector, domain.MatchSector},
	}

	best := -1.0
	tag := domain.MatchTitle
	for _, f := range fields {
		if sim := Similarity(term, f.value); sim > best {
			best = sim
			tag = f.tag
		}
	}
	return best, tag
}
