package analysis

import (
	"fmt"
	"time"
)

// MetricRow is a single day's performance record for a query/page pair,
// as delivered by the reporting API and stored by the sync collaborator.
// Rows are immutable once ingested; CTR is always derived from clicks and
// impressions, never read back from storage.
type MetricRow struct {
	PropertyID  string    `json:"property_id"`
	Query       string    `json:"query"`
	Page        string    `json:"page"`
	Date        time.Time `json:"date"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	Position    float64   `json:"position"`
}

// QuerySummary aggregates all rows for one query over an analysis window.
// BestPage is the page with the highest click total for the query.
type QuerySummary struct {
	Query            string  `json:"query"`
	BestPage         string  `json:"page"`
	TotalClicks      int     `json:"total_clicks"`
	TotalImpressions int     `json:"total_impressions"`
	AvgPosition      float64 `json:"avg_position"` // impression-weighted
	CTR              float64 `json:"ctr"`
}

// PageSummary aggregates all rows for one page over an analysis window.
type PageSummary struct {
	Page             string  `json:"page"`
	DistinctQueries  int     `json:"distinct_queries"`
	TotalClicks      int     `json:"total_clicks"`
	TotalImpressions int     `json:"total_impressions"`
	AvgPosition      float64 `json:"avg_position"` // impression-weighted
}

// KeywordCluster is a group of lexically related queries produced by a
// single clustering run. Clustering is a partition: every input query
// belongs to exactly one cluster.
type KeywordCluster struct {
	ID               string   `json:"cluster_id"`
	Label            string   `json:"label"` // highest-impression member
	Members          []string `json:"members"`
	TotalClicks      int      `json:"total_clicks"`
	TotalImpressions int      `json:"total_impressions"`
	BestPosition     float64  `json:"best_position"`
}

// OpportunityType identifies which detector produced an opportunity.
type OpportunityType string

const (
	TypeQuickWin         OpportunityType = "quick_win"
	TypeCTROptimization  OpportunityType = "ctr_optimization"
	TypeContentExpansion OpportunityType = "content_expansion"
	TypeContentGap       OpportunityType = "content_gap"
	TypeDeclining        OpportunityType = "declining"
)

// Opportunity is one ranked, actionable finding. Exactly one of Query,
// Page or ClusterID identifies the subject, depending on Type.
type Opportunity struct {
	Type      OpportunityType    `json:"type"`
	Query     string             `json:"query,omitempty"`
	Page      string             `json:"page,omitempty"`
	ClusterID string             `json:"cluster_id,omitempty"`
	Score     float64            `json:"score"`
	Metrics   map[string]float64 `json:"metrics"`
	Rationale string             `json:"rationale"`
}

// Subject returns the identifying key for the opportunity, used for
// within-type deduplication and deterministic tie-breaking.
func (o Opportunity) Subject() string {
	switch {
	case o.ClusterID != "":
		return o.ClusterID
	case o.Query != "":
		return o.Query
	default:
		return o.Page
	}
}

// PeriodMetrics holds the aggregated numbers for one comparison period.
type PeriodMetrics struct {
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	Position    float64 `json:"position"`
	CTR         float64 `json:"ctr"`
}

// TrendDelta compares one query across two equal-length periods. A delta
// only exists when the query had impressions in both periods; queries seen
// in a single period are excluded rather than reported as zero deltas.
type TrendDelta struct {
	Query           string        `json:"query"`
	Current         PeriodMetrics `json:"current"`
	Prior           PeriodMetrics `json:"prior"`
	ClickDelta      int           `json:"click_delta"`
	ImpressionDelta int           `json:"impression_delta"`
	PositionDelta   float64       `json:"position_delta"` // positive = worsened
}

// Window is an inclusive date range for one analysis period.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the inclusive length of the window in days.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Overlaps reports whether two windows share any day.
func (w Window) Overlaps(o Window) bool {
	return !w.End.Before(o.Start) && !o.End.Before(w.Start)
}

// Previous returns the equal-length window ending the day before w starts.
func (w Window) Previous() Window {
	length := w.End.Sub(w.Start)
	end := w.Start.AddDate(0, 0, -1)
	return Window{Start: end.Add(-length), End: end}
}

// Validate checks that the window is well-formed.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &ConfigurationError{Field: "window", Reason: "start and end dates are required"}
	}
	if w.End.Before(w.Start) {
		return &ConfigurationError{Field: "window", Reason: fmt.Sprintf("end %s precedes start %s", w.End.Format("2006-01-02"), w.Start.Format("2006-01-02"))}
	}
	return nil
}
