package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/searchlighthq/searchlight/internal/observability"
)

// Store is the read-only query surface the engine fetches rows from.
// Pagination beyond any single-call cap, deduplication of overlapping
// sync windows, and retry on API errors are all the store collaborator's
// concern - the engine sees one flat, order-irrelevant row collection.
type Store interface {
	MetricRows(ctx context.Context, propertyID string, window Window) ([]MetricRow, error)
}

// Engine runs one batch opportunity analysis per invocation. It holds no
// mutable state between runs; every entity it produces is a value scoped
// to a single call, so concurrent runs for different properties are
// fully isolated.
type Engine struct {
	store Store
	cfg   Config
}

// NewEngine validates the configuration up front so a misconfigured
// engine can never produce a partial run.
func NewEngine(store Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "a metric row store is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{store: store, cfg: cfg}, nil
}

// TypeSummary aggregates one opportunity type for the report header.
type TypeSummary struct {
	Count       int     `json:"count"`
	TopScore    float64 `json:"top_score"`
	ClickUplift float64 `json:"click_uplift,omitempty"`
}

// Report is the complete output of one analysis run.
type Report struct {
	RunID         string                          `json:"run_id"`
	PropertyID    string                          `json:"property_id"`
	Window        Window                          `json:"window"`
	PriorWindow   Window                          `json:"prior_window"`
	GeneratedAt   time.Time                       `json:"generated_at"`
	RowCount      int                             `json:"row_count"`
	QueryCount    int                             `json:"query_count"`
	PageCount     int                             `json:"page_count"`
	ClusterCount  int                             `json:"cluster_count"`
	QuickWinFloor int                             `json:"quick_win_floor"`
	Summary       map[OpportunityType]TypeSummary `json:"summary"`
	Opportunities []Opportunity                   `json:"opportunities"`
}

// Analyze runs the full detector suite for a property over a window,
// comparing trends against the equal-length window immediately before it.
func (e *Engine) Analyze(ctx context.Context, propertyID string, window Window) (*Report, error) {
	return e.AnalyzeWithPrior(ctx, propertyID, window, window.Previous())
}

// AnalyzeWithPrior is Analyze with an explicit trend comparison period.
// The prior window must be equal-length and non-overlapping; violations
// fail the run with a ConfigurationError. An empty row set is not an
// error - the report simply carries no opportunities.
func (e *Engine) AnalyzeWithPrior(ctx context.Context, propertyID string, window, prior Window) (*Report, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.New().String()

	ctx, span := observability.StartAnalysisSpan(ctx, observability.AnalysisSpanInfo{
		RunID:       runID,
		PropertyID:  propertyID,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	})
	defer span.End()

	rows, err := e.store.MetricRows(ctx, propertyID, window)
	if err != nil {
		e.recordRun(ctx, propertyID, "fetch_failed", started, 0)
		return nil, fmt.Errorf("fetch rows for %s: %w", propertyID, err)
	}

	querySummaries, pageSummaries, err := Summarize(rows, propertyID)
	if err != nil {
		e.recordRun(ctx, propertyID, "integrity_failed", started, len(rows))
		return nil, err
	}

	priorRows, err := e.store.MetricRows(ctx, propertyID, prior)
	if err != nil {
		e.recordRun(ctx, propertyID, "fetch_failed", started, len(rows))
		return nil, fmt.Errorf("fetch prior rows for %s: %w", propertyID, err)
	}
	priorSummaries, _, err := Summarize(priorRows, propertyID)
	if err != nil {
		e.recordRun(ctx, propertyID, "integrity_failed", started, len(rows))
		return nil, err
	}

	floor := ResolveQuickWinFloor(querySummaries, e.cfg)

	// The detectors are independent of each other and share only
	// immutable summary inputs, so they fan out onto a group and join
	// before prioritisation.
	var (
		quickWins, ctrOpps, expansions, gaps, declines []Opportunity
		clusterCount                                   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quickWins = DetectQuickWins(querySummaries, e.cfg)
		return nil
	})
	g.Go(func() error {
		var err error
		ctrOpps, err = DetectCTRUnderperformers(querySummaries, e.cfg)
		return err
	})
	g.Go(func() error {
		expansions = DetectExpansionCandidates(pageSummaries, e.cfg)
		return nil
	})
	g.Go(func() error {
		clusters := ClusterQueries(querySummaries, e.cfg.ClusterSimilarity)
		clusterCount = len(clusters)
		gaps = DetectContentGaps(clusters, querySummaries, e.cfg)
		return nil
	})
	g.Go(func() error {
		deltas, err := ComparePeriods(querySummaries, priorSummaries, window, prior)
		if err != nil {
			return err
		}
		declines = DetectDecliningQueries(deltas, e.cfg)
		return nil
	})
	if err := g.Wait(); err != nil {
		e.recordRun(gctx, propertyID, "detector_failed", started, len(rows))
		return nil, err
	}

	all := make([]Opportunity, 0, len(quickWins)+len(ctrOpps)+len(expansions)+len(gaps)+len(declines))
	all = append(all, gaps...)
	all = append(all, declines...)
	all = append(all, quickWins...)
	all = append(all, ctrOpps...)
	all = append(all, expansions...)

	report := &Report{
		RunID:         runID,
		PropertyID:    propertyID,
		Window:        window,
		PriorWindow:   prior,
		GeneratedAt:   time.Now().UTC(),
		RowCount:      len(rows),
		QueryCount:    len(querySummaries),
		PageCount:     len(pageSummaries),
		ClusterCount:  clusterCount,
		QuickWinFloor: floor,
		Summary:       summarizeByType(all),
		Opportunities: Prioritize(all, e.cfg.TopN),
	}

	observability.RecordOpportunities(ctx, propertyID, opportunityCounts(all))
	e.recordRun(ctx, propertyID, "completed", started, len(rows))

	log.Info().
		Str("run_id", runID).
		Str("property_id", propertyID).
		Int("rows", len(rows)).
		Int("queries", len(querySummaries)).
		Int("pages", len(pageSummaries)).
		Int("clusters", clusterCount).
		Int("opportunities", len(report.Opportunities)).
		Dur("elapsed", time.Since(started)).
		Msg("Analysis run completed")

	return report, nil
}

func (e *Engine) recordRun(ctx context.Context, propertyID, status string, started time.Time, rows int) {
	observability.RecordAnalysisRun(ctx, observability.AnalysisRunMetrics{
		PropertyID: propertyID,
		Status:     status,
		Duration:   time.Since(started),
		Rows:       rows,
	})
}

func summarizeByType(all []Opportunity) map[OpportunityType]TypeSummary {
	summary := make(map[OpportunityType]TypeSummary)
	for _, o := range all {
		s := summary[o.Type]
		s.Count++
		if o.Score > s.TopScore {
			s.TopScore = o.Score
		}
		s.ClickUplift += o.Metrics["click_uplift"]
		summary[o.Type] = s
	}
	return summary
}

func opportunityCounts(all []Opportunity) map[string]int {
	counts := make(map[string]int)
	for _, o := range all {
		counts[string(o.Type)]++
	}
	return counts
}
