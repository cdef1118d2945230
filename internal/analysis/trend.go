package analysis

import (
	"fmt"
	"sort"
)

// ComparePeriods computes per-query deltas between two equal-length,
// non-overlapping periods. A query yields a delta only when it had
// impressions in both periods; queries present in a single period are new
// or fully lost keywords, a separate reporting concern, and are excluded
// rather than reported as zero deltas.
func ComparePeriods(current, prior []QuerySummary, currentWindow, priorWindow Window) ([]TrendDelta, error) {
	if err := currentWindow.Validate(); err != nil {
		return nil, err
	}
	if err := priorWindow.Validate(); err != nil {
		return nil, err
	}
	if currentWindow.Days() != priorWindow.Days() {
		return nil, &ConfigurationError{Field: "trend_periods",
			Reason: fmt.Sprintf("periods differ in length: %d days vs %d days", currentWindow.Days(), priorWindow.Days())}
	}
	if currentWindow.Overlaps(priorWindow) {
		return nil, &ConfigurationError{Field: "trend_periods", Reason: "comparison periods overlap"}
	}

	priorByQuery := make(map[string]QuerySummary, len(prior))
	for _, s := range prior {
		priorByQuery[s.Query] = s
	}

	var deltas []TrendDelta
	for _, cur := range current {
		prev, ok := priorByQuery[cur.Query]
		if !ok {
			continue
		}
		if cur.TotalImpressions == 0 || prev.TotalImpressions == 0 {
			continue
		}

		deltas = append(deltas, TrendDelta{
			Query: cur.Query,
			Current: PeriodMetrics{
				Clicks:      cur.TotalClicks,
				Impressions: cur.TotalImpressions,
				Position:    cur.AvgPosition,
				CTR:         cur.CTR,
			},
			Prior: PeriodMetrics{
				Clicks:      prev.TotalClicks,
				Impressions: prev.TotalImpressions,
				Position:    prev.AvgPosition,
				CTR:         prev.CTR,
			},
			ClickDelta:      cur.TotalClicks - prev.TotalClicks,
			ImpressionDelta: cur.TotalImpressions - prev.TotalImpressions,
			PositionDelta:   cur.AvgPosition - prev.AvgPosition,
		})
	}

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].Query < deltas[j].Query
	})

	return deltas, nil
}
