package analysis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProperty = "sc-domain:example.com"

func row(query, page string, day, clicks, impressions int, position float64) MetricRow {
	return MetricRow{
		PropertyID:  testProperty,
		Query:       query,
		Page:        page,
		Date:        time.Date(2026, 6, day, 0, 0, 0, 0, time.UTC),
		Clicks:      clicks,
		Impressions: impressions,
		Position:    position,
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	queries, pages, err := Summarize(nil, testProperty)

	require.NoError(t, err)
	assert.Empty(t, queries)
	assert.Empty(t, pages)
}

func TestSummarize_WeightedPositionAndCTR(t *testing.T) {
	rows := []MetricRow{
		row("running shoes", "/shoes", 1, 10, 100, 5),
		row("running shoes", "/shoes", 2, 2, 300, 9),
	}

	queries, pages, err := Summarize(rows, testProperty)
	require.NoError(t, err)
	require.Len(t, queries, 1)

	q := queries[0]
	assert.Equal(t, "running shoes", q.Query)
	assert.Equal(t, 12, q.TotalClicks)
	assert.Equal(t, 400, q.TotalImpressions)
	// Position is impression-weighted: (5*100 + 9*300) / 400
	assert.InDelta(t, 8.0, q.AvgPosition, 1e-9)
	// CTR comes from summed clicks over summed impressions, not a per-row average
	assert.InDelta(t, 0.03, q.CTR, 1e-9)

	require.Len(t, pages, 1)
	assert.Equal(t, "/shoes", pages[0].Page)
	assert.Equal(t, 1, pages[0].DistinctQueries)
	assert.InDelta(t, 8.0, pages[0].AvgPosition, 1e-9)
}

func TestSummarize_ZeroImpressionGroupsDropped(t *testing.T) {
	rows := []MetricRow{
		row("visible query", "/a", 1, 5, 100, 3),
		row("ghost query", "/b", 1, 0, 0, 0),
	}

	queries, pages, err := Summarize(rows, testProperty)
	require.NoError(t, err)

	require.Len(t, queries, 1)
	assert.Equal(t, "visible query", queries[0].Query)
	require.Len(t, pages, 1)
	assert.Equal(t, "/a", pages[0].Page)
}

func TestSummarize_BestPage(t *testing.T) {
	t.Run("highest_clicks_wins", func(t *testing.T) {
		rows := []MetricRow{
			row("q", "/winner", 1, 20, 200, 8),
			row("q", "/loser", 1, 5, 500, 2),
		}
		queries, _, err := Summarize(rows, testProperty)
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, "/winner", queries[0].BestPage)
	})

	t.Run("click_tie_breaks_by_position", func(t *testing.T) {
		rows := []MetricRow{
			row("q", "/deep", 1, 10, 100, 9),
			row("q", "/shallow", 1, 10, 100, 3),
		}
		queries, _, err := Summarize(rows, testProperty)
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, "/shallow", queries[0].BestPage)
	})

	t.Run("full_tie_breaks_lexicographically", func(t *testing.T) {
		rows := []MetricRow{
			row("q", "/bravo", 1, 10, 100, 5),
			row("q", "/alpha", 1, 10, 100, 5),
		}
		queries, _, err := Summarize(rows, testProperty)
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, "/alpha", queries[0].BestPage)
	})
}

func TestSummarize_PageDistinctQueries(t *testing.T) {
	rows := []MetricRow{
		row("first query", "/hub", 1, 1, 10, 5),
		row("second query", "/hub", 1, 1, 10, 6),
		row("second query", "/hub", 2, 2, 20, 6),
		row("third query", "/other", 1, 1, 10, 7),
	}

	_, pages, err := Summarize(rows, testProperty)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	// Sorted by impressions descending
	assert.Equal(t, "/hub", pages[0].Page)
	assert.Equal(t, 2, pages[0].DistinctQueries)
	assert.Equal(t, 40, pages[0].TotalImpressions)
	assert.Equal(t, "/other", pages[1].Page)
	assert.Equal(t, 1, pages[1].DistinctQueries)
}

func TestSummarize_OutputOrdering(t *testing.T) {
	rows := []MetricRow{
		row("small", "/small", 1, 1, 10, 5),
		row("big", "/big", 1, 10, 1000, 5),
		row("also small", "/small2", 1, 1, 10, 5),
	}

	queries, _, err := Summarize(rows, testProperty)
	require.NoError(t, err)
	require.Len(t, queries, 3)

	assert.Equal(t, "big", queries[0].Query)
	// Equal impressions fall back to query name
	assert.Equal(t, "also small", queries[1].Query)
	assert.Equal(t, "small", queries[2].Query)
}

func TestSummarize_DataIntegrity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MetricRow)
		reason string
	}{
		{
			name:   "wrong_property",
			mutate: func(r *MetricRow) { r.PropertyID = "sc-domain:other.com" },
			reason: "property",
		},
		{
			name:   "negative_clicks",
			mutate: func(r *MetricRow) { r.Clicks = -1 },
			reason: "negative clicks",
		},
		{
			name:   "negative_impressions",
			mutate: func(r *MetricRow) { r.Impressions = -5 },
			reason: "negative impressions",
		},
		{
			name:   "clicks_exceed_impressions",
			mutate: func(r *MetricRow) { r.Clicks = 50; r.Impressions = 10 },
			reason: "clicks exceed impressions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := row("bad query", "/bad", 1, 5, 100, 3)
			tt.mutate(&bad)
			rows := []MetricRow{
				row("good query", "/good", 1, 5, 100, 3),
				bad,
			}

			queries, pages, err := Summarize(rows, testProperty)
			require.Error(t, err)
			assert.Nil(t, queries)
			assert.Nil(t, pages)

			var integrityErr *DataIntegrityError
			require.True(t, errors.As(err, &integrityErr))
			// The error names the offending row, not just the failure
			assert.Equal(t, "bad query", integrityErr.Query)
			assert.Equal(t, "/bad", integrityErr.Page)
			assert.Contains(t, integrityErr.Reason, tt.reason)
		})
	}
}
