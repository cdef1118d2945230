package analysis

import "sort"

// typeRank orders opportunity types for tie-breaking: gaps and declines
// represent the most time-sensitive risk, so they win equal scores.
var typeRank = map[OpportunityType]int{
	TypeContentGap:       0,
	TypeDeclining:        1,
	TypeQuickWin:         2,
	TypeCTROptimization:  3,
	TypeContentExpansion: 4,
}

// Prioritize merges detector outputs into one ranked action list of at
// most topN entries. The same subject may legitimately appear under
// several types (a page can be both a quick win and a CTR target), so
// deduplication happens only within a type, keeping the higher score.
// Scores are compared across types without renormalisation - each type
// keeps its own scale, a deliberate simplicity trade-off.
func Prioritize(opportunities []Opportunity, topN int) []Opportunity {
	type key struct {
		t       OpportunityType
		subject string
	}

	best := make(map[key]Opportunity, len(opportunities))
	for _, o := range opportunities {
		k := key{o.Type, o.Subject()}
		if existing, ok := best[k]; !ok || o.Score > existing.Score {
			best[k] = o
		}
	}

	merged := make([]Opportunity, 0, len(best))
	for _, o := range best {
		merged = append(merged, o)
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if typeRank[a.Type] != typeRank[b.Type] {
			return typeRank[a.Type] < typeRank[b.Type]
		}
		return a.Subject() < b.Subject()
	})

	if topN > 0 && len(merged) > topN {
		merged = merged[:topN]
	}
	return merged
}
