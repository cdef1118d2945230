package analysis

import "fmt"

// minHeadroom floors the quick-win clickthrough headroom so zero-CTR
// queries still rank by impression volume.
const minHeadroom = 0.01

// Config carries every detector threshold. All fields have defaults;
// Validate rejects contradictory overrides instead of clamping them.
type Config struct {
	Benchmark BenchmarkCurve

	// Quick wins: queries ranking just outside the top positions.
	QuickWinMinPosition float64
	QuickWinMaxPosition float64
	// QuickWinMinImpressions is the impression floor. Zero means derive
	// it from the dataset itself via QuickWinPercentile, so the detector
	// self-calibrates across small and large sites.
	QuickWinMinImpressions int
	QuickWinPercentile     float64
	// QuickWinFloorMinimum bounds the derived floor from below.
	QuickWinFloorMinimum int

	// CTR underperformers: top-ranking queries clicking below benchmark.
	CTRMaxPosition           float64
	CTRUnderperformanceRatio float64

	// Content expansion: pages ranking for many distinct queries.
	ExpansionMinQueries int

	// Clustering: token-set Jaccard link threshold.
	ClusterSimilarity float64

	// Content gaps: clusters with demand but no page ranking well.
	GapMinImpressions int
	GapPoorPosition   float64
	GapMinClusterSize int

	// Declining keywords: period-over-period click loss.
	DeclineMinDropRatio   float64
	DeclineMinPriorClicks int

	// TopN caps the final prioritized action list.
	TopN int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Benchmark:                DefaultBenchmark(),
		QuickWinMinPosition:      4,
		QuickWinMaxPosition:      20,
		QuickWinMinImpressions:   0, // derived from the dataset
		QuickWinPercentile:       0.75,
		QuickWinFloorMinimum:     10,
		CTRMaxPosition:           3,
		CTRUnderperformanceRatio: 0.8,
		ExpansionMinQueries:      5,
		ClusterSimilarity:        0.5,
		GapMinImpressions:        50,
		GapPoorPosition:          20,
		GapMinClusterSize:        2,
		DeclineMinDropRatio:      0.25,
		DeclineMinPriorClicks:    50,
		TopN:                     25,
	}
}

// Validate checks the configuration for contradictions. Errors here are
// fatal to the run.
func (c Config) Validate() error {
	if err := c.Benchmark.Validate(); err != nil {
		return err
	}
	if c.QuickWinMinPosition < 1 {
		return &ConfigurationError{Field: "quick_win_min_position", Reason: "must be at least 1"}
	}
	if c.QuickWinMaxPosition < c.QuickWinMinPosition {
		return &ConfigurationError{Field: "quick_win_max_position", Reason: fmt.Sprintf("%v is below the minimum position %v", c.QuickWinMaxPosition, c.QuickWinMinPosition)}
	}
	if c.QuickWinMinImpressions < 0 {
		return &ConfigurationError{Field: "quick_win_min_impressions", Reason: "cannot be negative"}
	}
	if c.QuickWinPercentile <= 0 || c.QuickWinPercentile >= 1 {
		return &ConfigurationError{Field: "quick_win_percentile", Reason: "must be strictly between 0 and 1"}
	}
	if c.QuickWinFloorMinimum < 0 {
		return &ConfigurationError{Field: "quick_win_floor_minimum", Reason: "cannot be negative"}
	}
	if c.CTRMaxPosition < 1 {
		return &ConfigurationError{Field: "ctr_max_position", Reason: "must be at least 1"}
	}
	if c.CTRUnderperformanceRatio <= 0 || c.CTRUnderperformanceRatio > 1 {
		return &ConfigurationError{Field: "ctr_underperformance_ratio", Reason: "must be in (0,1]"}
	}
	if c.ExpansionMinQueries < 1 {
		return &ConfigurationError{Field: "expansion_min_queries", Reason: "must be at least 1"}
	}
	if c.ClusterSimilarity <= 0 || c.ClusterSimilarity >= 1 {
		return &ConfigurationError{Field: "cluster_similarity", Reason: "must be strictly between 0 and 1"}
	}
	if c.GapMinImpressions < 0 {
		return &ConfigurationError{Field: "gap_min_impressions", Reason: "cannot be negative"}
	}
	if c.GapPoorPosition < 1 {
		return &ConfigurationError{Field: "gap_poor_position", Reason: "must be at least 1"}
	}
	if c.GapMinClusterSize < 1 {
		return &ConfigurationError{Field: "gap_min_cluster_size", Reason: "must be at least 1"}
	}
	if c.DeclineMinDropRatio <= 0 || c.DeclineMinDropRatio > 1 {
		return &ConfigurationError{Field: "decline_min_drop_ratio", Reason: "must be in (0,1]"}
	}
	if c.DeclineMinPriorClicks < 1 {
		return &ConfigurationError{Field: "decline_min_prior_clicks", Reason: "must be at least 1"}
	}
	if c.TopN < 1 {
		return &ConfigurationError{Field: "top_n", Reason: "must be at least 1"}
	}
	return nil
}
