package analysis

import (
	"fmt"
	"sort"
)

// DetectCTRUnderperformers flags queries already ranking in the top
// positions whose actual CTR sits well below the benchmark expectation
// for their position - these want better titles and descriptions rather
// than ranking work. The benchmark curve is re-validated here so a
// caller-supplied non-monotonic curve fails fast instead of producing
// nonsensical scores.
func DetectCTRUnderperformers(summaries []QuerySummary, cfg Config) ([]Opportunity, error) {
	if err := cfg.Benchmark.Validate(); err != nil {
		return nil, err
	}

	var opportunities []Opportunity
	for _, s := range summaries {
		if s.AvgPosition > cfg.CTRMaxPosition {
			continue
		}

		expected := cfg.Benchmark.ExpectedCTR(s.AvgPosition)
		if s.CTR >= expected*cfg.CTRUnderperformanceRatio {
			continue
		}

		gap := expected - s.CTR
		potential := float64(s.TotalImpressions) * expected
		uplift := potential - float64(s.TotalClicks)
		if uplift < 0 {
			uplift = 0
		}

		opportunities = append(opportunities, Opportunity{
			Type:  TypeCTROptimization,
			Query: s.Query,
			Page:  s.BestPage,
			Score: float64(s.TotalImpressions) * gap,
			Metrics: map[string]float64{
				"position":         s.AvgPosition,
				"impressions":      float64(s.TotalImpressions),
				"clicks":           float64(s.TotalClicks),
				"ctr":              s.CTR,
				"expected_ctr":     expected,
				"ctr_gap":          gap,
				"potential_clicks": potential,
				"click_uplift":     uplift,
			},
			Rationale: fmt.Sprintf("Improve title and description for %q - CTR %.1f%% against an expected %.1f%% at position %.1f",
				s.Query, s.CTR*100, expected*100, s.AvgPosition),
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
		return a.Query < b.Query
	})

	return opportunities, nil
}
