package analysis

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(query string, clicks, impressions int, position float64) QuerySummary {
	return QuerySummary{
		Query:            query,
		TotalClicks:      clicks,
		TotalImpressions: impressions,
		AvgPosition:      position,
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "lowercases_and_splits",
			query:    "Buy Red Shoes",
			expected: []string{"buy", "red", "shoes"},
		},
		{
			name:     "drops_stopwords",
			query:    "how to fix a bike",
			expected: []string{"fix", "bike"},
		},
		{
			name:     "splits_on_punctuation",
			query:    "men's running-shoes 2026",
			expected: []string{"men", "s", "running", "shoes", "2026"},
		},
		{
			name:     "duplicate_words_collapse",
			query:    "shoes shoes shoes",
			expected: []string{"shoes"},
		},
		{
			name:     "all_stopwords_empty",
			query:    "what is the",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := tokenize(tt.query)
			got := make([]string, 0, len(tokens))
			for tok := range tokens {
				got = append(got, tok)
			}
			sort.Strings(got)
			expected := append([]string{}, tt.expected...)
			sort.Strings(expected)
			assert.Equal(t, expected, got)
		})
	}
}

func TestJaccard(t *testing.T) {
	a := tokenize("buy red shoes")
	b := tokenize("buy red shoe")
	// Intersection {buy, red} over union {buy, red, shoes, shoe}
	assert.InDelta(t, 0.5, jaccard(a, b), 1e-9)

	assert.InDelta(t, 1.0, jaccard(a, tokenize("buy red shoes")), 1e-9)
	assert.InDelta(t, 0.0, jaccard(a, tokenize("weather forecast")), 1e-9)
	assert.InDelta(t, 0.0, jaccard(a, tokenize("")), 1e-9)
}

func TestClusterQueries_RelatedAndUnrelated(t *testing.T) {
	summaries := []QuerySummary{
		summary("buy red shoes", 10, 500, 6),
		summary("buy red shoe", 4, 200, 9),
		summary("weather forecast", 2, 100, 3),
	}

	clusters := ClusterQueries(summaries, DefaultConfig().ClusterSimilarity)
	require.Len(t, clusters, 2)

	// Sorted by impressions descending, so the shoe cluster comes first
	shoes := clusters[0]
	assert.Equal(t, []string{"buy red shoe", "buy red shoes"}, shoes.Members)
	assert.Equal(t, "buy red shoes", shoes.Label)
	assert.Equal(t, "cluster:buy-red-shoes", shoes.ID)
	assert.Equal(t, 14, shoes.TotalClicks)
	assert.Equal(t, 700, shoes.TotalImpressions)
	assert.InDelta(t, 6, shoes.BestPosition, 1e-9)

	weather := clusters[1]
	assert.Equal(t, []string{"weather forecast"}, weather.Members)
	assert.Equal(t, "cluster:weather-forecast", weather.ID)
}

func TestClusterQueries_ThresholdIsInclusive(t *testing.T) {
	// Jaccard is exactly 0.5 for these: the pair links when the threshold
	// equals the similarity, and splits once the threshold moves above it.
	summaries := []QuerySummary{
		summary("buy red shoes", 10, 500, 6),
		summary("buy red shoe", 4, 200, 9),
	}

	assert.Len(t, ClusterQueries(summaries, 0.5), 1)
	assert.Len(t, ClusterQueries(summaries, 0.55), 2)
}

func TestClusterQueries_SubsetAlwaysLinks(t *testing.T) {
	// {red, shoes} is contained in {buy, red, shoes, online}, so the pair
	// links even when its Jaccard similarity is below the threshold.
	summaries := []QuerySummary{
		summary("red shoes", 10, 500, 6),
		summary("buy red shoes online", 4, 200, 9),
	}

	clusters := ClusterQueries(summaries, 0.9)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"buy red shoes online", "red shoes"}, clusters[0].Members)
}

func TestClusterQueries_StopwordsIgnored(t *testing.T) {
	summaries := []QuerySummary{
		summary("how to fix bike", 5, 100, 10),
		summary("fix bike", 3, 80, 12),
	}

	clusters := ClusterQueries(summaries, 0.5)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 2)
}

func TestClusterQueries_TransitiveClosure(t *testing.T) {
	// A links to B and B links to C; A and C share a cluster even though
	// they are not directly similar enough.
	summaries := []QuerySummary{
		summary("best trail running shoes", 5, 300, 8),
		summary("trail running shoes review", 3, 200, 11),
		summary("running shoes review 2026", 1, 50, 25),
	}

	clusters := ClusterQueries(summaries, 0.45)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 3)
}

func TestClusterQueries_IsPartition(t *testing.T) {
	summaries := []QuerySummary{
		summary("buy red shoes", 10, 500, 6),
		summary("buy red shoe", 4, 200, 9),
		summary("red shoes sale", 3, 150, 12),
		summary("weather forecast", 2, 100, 3),
		summary("weather forecast tomorrow", 1, 50, 7),
		summary("golang tutorial", 8, 400, 4),
	}

	clusters := ClusterQueries(summaries, 0.4)

	seen := make(map[string]int)
	for _, c := range clusters {
		require.NotEmpty(t, c.Members)
		for _, q := range c.Members {
			seen[q]++
		}
	}

	// Every input query lands in exactly one cluster
	assert.Len(t, seen, len(summaries))
	for _, s := range summaries {
		assert.Equal(t, 1, seen[s.Query], "query %q", s.Query)
	}
}

func TestClusterQueries_OrderIndependent(t *testing.T) {
	summaries := []QuerySummary{
		summary("buy red shoes", 10, 500, 6),
		summary("buy red shoe", 4, 200, 9),
		summary("red shoes sale", 3, 150, 12),
		summary("weather forecast", 2, 100, 3),
		summary("golang tutorial", 8, 400, 4),
		summary("learn golang tutorial", 1, 90, 15),
	}

	baseline := partitionKey(ClusterQueries(summaries, 0.4))

	reversed := make([]QuerySummary, len(summaries))
	for i, s := range summaries {
		reversed[len(summaries)-1-i] = s
	}
	assert.Equal(t, baseline, partitionKey(ClusterQueries(reversed, 0.4)))

	rotated := append(append([]QuerySummary{}, summaries[3:]...), summaries[:3]...)
	assert.Equal(t, baseline, partitionKey(ClusterQueries(rotated, 0.4)))
}

func TestClusterQueries_EmptyInput(t *testing.T) {
	assert.Nil(t, ClusterQueries(nil, 0.5))
}

// partitionKey flattens a clustering into a canonical string so two
// partitions can be compared as sets of sets.
func partitionKey(clusters []KeywordCluster) string {
	groups := make([]string, 0, len(clusters))
	for _, c := range clusters {
		members := append([]string{}, c.Members...)
		sort.Strings(members)
		groups = append(groups, strings.Join(members, "|"))
	}
	sort.Strings(groups)
	return strings.Join(groups, ";;")
}
