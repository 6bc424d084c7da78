package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/datamart/internal/domain"
)

func TestSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"", "abc"},
		{"abc", ""},
		{"kitten", "sitting"},
		{"FX Spot", "fx spot"},
		{"Operation Killshot", "Opration Kilshot"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, "similarity(%q,%q)", p[0], p[1])
		assert.LessOrEqual(t, s, 1.0, "similarity(%q,%q)", p[0], p[1])
	}
}

func TestSimilarity_Identity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("Player Churn Model", "Player Churn Model"))
	// Case-insensitive: distinct casing is still identity.
	assert.Equal(t, 1.0, Similarity("FX Spot", "fx spot"))
}

func TestSimilarity_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"", "abc"},
		{"telemetry", "telemetree"},
		{"Opration Kilshot", "Operation Killshot Preorder Analytics"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]),
			"similarity(%q,%q) not symmetric", p[0], p[1])
	}
}

func TestSimilarity_EmptyVersusNonEmpty(t *testing.T) {
	// Full edit distance relative to the longer string.
	assert.Equal(t, 0.0, Similarity("", "abcd"))
}

func TestSimilarity_KnownDistance(t *testing.T) {
	// kitten -> sitting: 3 edits, maxLen 7.
	assert.InDelta(t, 4.0/7.0, Similarity("kitten", "sitting"), 1e-9)
}

func record(title, dom, category, sector string) domain.DataSourceRecord {
	return domain.DataSourceRecord{
		Title:    title,
		Domain:   dom,
		Category: category,
		Sector:   sector,
	}
}

func TestRank_TypoMatchesTitle(t *testing.T) {
	records := []domain.DataSourceRecord{
		record("Operation Killshot Preorder Analytics", "Operation Killshot", "Sales", "Shooter"),
		record("Weather Station Feeds", "Meteorology", "IoT", "Environment"),
	}

	got := Rank("Opration Kilshot", records, DefaultThreshold, DefaultTopN)
	require.NotEmpty(t, got)
	assert.Equal(t, "Operation Killshot Preorder Analytics", got[0].Title)
	assert.Greater(t, got[0].Similarity, 0.4)
}

func TestRank_MatchFieldTieBreak(t *testing.T) {
	// Title and domain are identical, so both fields score the same; the
	// title must win the tag.
	records := []domain.DataSourceRecord{
		record("Racing Telemetry", "Racing Telemetry", "Telemetry", "Racing"),
	}

	got := Rank("Racing Telemetry", records, 0.1, 1)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MatchTitle, got[0].MatchType)
}

func TestRank_DomainFieldWins(t *testing.T) {
	records := []domain.DataSourceRecord{
		record("Quarterly Revenue Rollup", "Operation Killshot", "Finance", "Shooter"),
	}

	got := Rank("Operation Kilshot", records, 0.4, 3)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MatchDomain, got[0].MatchType)
}

func TestRank_SortedDescendingAndTruncated(t *testing.T) {
	records := []domain.DataSourceRecord{
		record("alpha metrics", "", "", ""),
		record("alpha metric", "", "", ""),
		record("alpha metrics daily", "", "", ""),
		record("alpha metricz", "", "", ""),
	}

	got := Rank("alpha metrics", records, 0.4, 3)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
	assert.Equal(t, "alpha metrics", got[0].Title)
}

func TestRank_ThresholdFiltersEverything(t *testing.T) {
	records := []domain.DataSourceRecord{
		record("Completely Unrelated Dataset Name", "Other", "Misc", "None"),
	}
	assert.Empty(t, Rank("zzzz", records, DefaultThreshold, DefaultTopN))
}

func TestRank_EmptyTermReturnsNothing(t *testing.T) {
	records := []domain.DataSourceRecord{record("anything", "", "", "")}
	assert.Nil(t, Rank("", records, DefaultThreshold, DefaultTopN))
}
