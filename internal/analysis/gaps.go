package analysis

import (
	"fmt"
	"sort"
)

// DetectContentGaps flags keyword clusters with demonstrated demand where
// even the best-ranking member still ranks poorly and no existing page
// captures the cluster. Clusters where a single page already earns the
// majority of clicks are content-expansion territory, not gaps, and are
// excluded so the same subject is not flagged twice.
func DetectContentGaps(clusters []KeywordCluster, summaries []QuerySummary, cfg Config) []Opportunity {
	byQuery := make(map[string]QuerySummary, len(summaries))
	for _, s := range summaries {
		byQuery[s.Query] = s
	}

	var opportunities []Opportunity
	for _, c := range clusters {
		if len(c.Members) < cfg.GapMinClusterSize {
			continue
		}
		if c.TotalImpressions < cfg.GapMinImpressions {
			continue
		}
		if c.BestPosition <= cfg.GapPoorPosition {
			continue
		}
		if dominantPageShare(c, byQuery) > 0.5 {
			continue
		}

		// Clusters further from ranking at all score higher.
		opportunities = append(opportunities, Opportunity{
			Type:      TypeContentGap,
			ClusterID: c.ID,
			Score:     float64(c.TotalImpressions) * (c.BestPosition / cfg.GapPoorPosition),
			Metrics: map[string]float64{
				"member_queries": float64(len(c.Members)),
				"impressions":    float64(c.TotalImpressions),
				"clicks":         float64(c.TotalClicks),
				"best_position":  c.BestPosition,
			},
			Rationale: fmt.Sprintf("Create dedicated content for the %q topic - %d related queries, best position %.1f", c.Label, len(c.Members), c.BestPosition),
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metrics["impressions"] != b.Metrics["impressions"] {
			return a.Metrics["impressions"] > b.Metrics["impressions"]
		}
		return a.ClusterID < b.ClusterID
	})

	return opportunities
}

// dominantPageShare returns the largest share of the cluster's clicks
// attributable to a single best page. Zero-click clusters have no
// dominant page.
func dominantPageShare(c KeywordCluster, byQuery map[string]QuerySummary) float64 {
	if c.TotalClicks == 0 {
		return 0
	}

	clicksByPage := make(map[string]int)
	for _, q := range c.Members {
		s, ok := byQuery[q]
		if !ok || s.BestPage == "" {
			continue
		}
		clicksByPage[s.BestPage] += s.TotalClicks
	}

	max := 0
	for _, clicks := range clicksByPage {
		if clicks > max {
			max = clicks
		}
	}
	return float64(max) / float64(c.TotalClicks)
}
