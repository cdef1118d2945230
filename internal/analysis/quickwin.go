package analysis

import (
	"fmt"
	"math"
	"sort"
)

// ResolveQuickWinFloor returns the impression floor for the quick-win
// detector. An explicit floor wins; otherwise the floor is the impression
// value at the configured percentile of the current window's queries, so
// small sites and large sites self-calibrate, bounded below so trivially
// small datasets do not flag everything.
func ResolveQuickWinFloor(summaries []QuerySummary, cfg Config) int {
	if cfg.QuickWinMinImpressions > 0 {
		return cfg.QuickWinMinImpressions
	}
	if len(summaries) == 0 {
		return cfg.QuickWinFloorMinimum
	}

	impressions := make([]int, len(summaries))
	for i, s := range summaries {
		impressions[i] = s.TotalImpressions
	}
	sort.Ints(impressions)

	// Nearest-rank percentile.
	rank := int(math.Ceil(cfg.QuickWinPercentile*float64(len(impressions)))) - 1
	if rank < 0 {
		rank = 0
	}
	floor := impressions[rank]
	if floor < cfg.QuickWinFloorMinimum {
		floor = cfg.QuickWinFloorMinimum
	}
	return floor
}

// DetectQuickWins flags queries ranking just outside the top positions
// with enough demand that a modest ranking improvement would pay off.
// Score is impressions times clickthrough headroom against the benchmark
// curve; headroom is floored so zero-CTR queries still rank by volume.
func DetectQuickWins(summaries []QuerySummary, cfg Config) []Opportunity {
	floor := ResolveQuickWinFloor(summaries, cfg)

	var opportunities []Opportunity
	for _, s := range summaries {
		if s.AvgPosition < cfg.QuickWinMinPosition || s.AvgPosition > cfg.QuickWinMaxPosition {
			continue
		}
		if s.TotalImpressions < floor {
			continue
		}

		expected := cfg.Benchmark.ExpectedCTR(s.AvgPosition)
		headroom := expected - s.CTR
		if headroom < minHeadroom {
			headroom = minHeadroom
		}

		potential := float64(s.TotalImpressions) * expected
		uplift := potential - float64(s.TotalClicks)
		if uplift < 0 {
			uplift = 0
		}

		opportunities = append(opportunities, Opportunity{
			Type:  TypeQuickWin,
			Query: s.Query,
			Page:  s.BestPage,
			Score: float64(s.TotalImpressions) * headroom,
			Metrics: map[string]float64{
				"position":         s.AvgPosition,
				"impressions":      float64(s.TotalImpressions),
				"clicks":           float64(s.TotalClicks),
				"ctr":              s.CTR,
				"expected_ctr":     expected,
				"headroom":         headroom,
				"potential_clicks": potential,
				"click_uplift":     uplift,
			},
			Rationale: fmt.Sprintf("Optimise content for %q - currently position %.1f with %d impressions", s.Query, s.AvgPosition, s.TotalImpressions),
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
		if a.Metrics["position"] != b.Metrics["position"] {
			return a.Metrics["position"] < b.Metrics["position"]
		}
		return a.Query < b.Query
	})

	return opportunities
}
