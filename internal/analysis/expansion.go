package analysis

import (
	"fmt"
	"sort"
)

// DetectExpansionCandidates flags pages that already rank for many
// distinct queries - good candidates for deeper content. Score multiplies
// query breadth by earned clicks so pages with many zero-traffic long
// tails do not crowd out pages that already perform.
func DetectExpansionCandidates(pages []PageSummary, cfg Config) []Opportunity {
	var opportunities []Opportunity
	for _, p := range pages {
		if p.DistinctQueries < cfg.ExpansionMinQueries {
			continue
		}

		opportunities = append(opportunities, Opportunity{
			Type:  TypeContentExpansion,
			Page:  p.Page,
			Score: float64(p.DistinctQueries) * float64(p.TotalClicks),
			Metrics: map[string]float64{
				"distinct_queries": float64(p.DistinctQueries),
				"clicks":           float64(p.TotalClicks),
				"impressions":      float64(p.TotalImpressions),
				"position":         p.AvgPosition,
			},
			Rationale: fmt.Sprintf("Expand %s - it ranks for %d distinct queries with %d clicks", p.Page, p.DistinctQueries, p.TotalClicks),
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metrics["distinct_queries"] != b.Metrics["distinct_queries"] {
			return a.Metrics["distinct_queries"] > b.Metrics["distinct_queries"]
		}
		return a.Page < b.Page
	})

	return opportunities
}
