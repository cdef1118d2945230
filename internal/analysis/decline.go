package analysis

import (
	"fmt"
	"math"
	"sort"
)

// DetectDecliningQueries flags queries that lost a meaningful share of
// their clicks period over period. A floor on prior clicks keeps
// statistically meaningless drops (2 clicks to 0) out of the list. The
// score rewards cases where position also worsened, which points at a
// ranking-driven decline rather than a seasonal demand dip.
func DetectDecliningQueries(deltas []TrendDelta, cfg Config) []Opportunity {
	var opportunities []Opportunity
	for _, d := range deltas {
		if d.Prior.Clicks < cfg.DeclineMinPriorClicks {
			continue
		}

		dropRatio := float64(d.ClickDelta) / float64(d.Prior.Clicks)
		if dropRatio > -cfg.DeclineMinDropRatio {
			continue
		}

		// Position worsening up to 10 places doubles the score.
		penalty := d.PositionDelta
		if penalty < 0 {
			penalty = 0
		} else if penalty > 10 {
			penalty = 10
		}

		opportunities = append(opportunities, Opportunity{
			Type:  TypeDeclining,
			Query: d.Query,
			Score: math.Abs(float64(d.ClickDelta)) * (1 + penalty/10),
			Metrics: map[string]float64{
				"prior_clicks":        float64(d.Prior.Clicks),
				"current_clicks":      float64(d.Current.Clicks),
				"click_delta":         float64(d.ClickDelta),
				"drop_ratio":          -dropRatio,
				"prior_position":      d.Prior.Position,
				"current_position":    d.Current.Position,
				"position_delta":      d.PositionDelta,
				"prior_impressions":   float64(d.Prior.Impressions),
				"current_impressions": float64(d.Current.Impressions),
			},
			Rationale: fmt.Sprintf("Clicks for %q fell %.0f%% period over period (%d to %d)",
				d.Query, -dropRatio*100, d.Prior.Clicks, d.Current.Clicks),
		})
	}

	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metrics["click_delta"] != b.Metrics["click_delta"] {
			return a.Metrics["click_delta"] < b.Metrics["click_delta"]
		}
		return a.Query < b.Query
	})

	return opportunities
}
