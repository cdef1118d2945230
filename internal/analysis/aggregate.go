package analysis

import "sort"

type groupTotals struct {
	clicks       int
	impressions  int
	positionMass float64 // sum(position * impressions)
}

func (g *groupTotals) add(r MetricRow) {
	g.clicks += r.Clicks
	g.impressions += r.Impressions
	g.positionMass += r.Position * float64(r.Impressions)
}

func (g *groupTotals) avgPosition() float64 {
	if g.impressions == 0 {
		return 0
	}
	return g.positionMass / float64(g.impressions)
}

func (g *groupTotals) ctr() float64 {
	if g.impressions == 0 {
		return 0
	}
	return float64(g.clicks) / float64(g.impressions)
}

// Summarize collapses raw rows into per-query and per-page summaries.
// Every row must belong to propertyID and be internally consistent;
// the first violation aborts the run with a DataIntegrityError naming
// the offending row. Groups with zero impressions are dropped - their
// CTR and weighted position are undefined.
//
// CTR is always computed from summed clicks over summed impressions,
// never averaged per row, and positions are impression-weighted so
// high-visibility days dominate the average.
func Summarize(rows []MetricRow, propertyID string) ([]QuerySummary, []PageSummary, error) {
	byQuery := make(map[string]*groupTotals)
	byPage := make(map[string]*groupTotals)
	pageQueries := make(map[string]map[string]struct{})
	byQueryPage := make(map[string]map[string]*groupTotals)

	for _, row := range rows {
		if err := validateRow(row, propertyID); err != nil {
			return nil, nil, err
		}

		q := byQuery[row.Query]
		if q == nil {
			q = &groupTotals{}
			byQuery[row.Query] = q
		}
		q.add(row)

		p := byPage[row.Page]
		if p == nil {
			p = &groupTotals{}
			byPage[row.Page] = p
		}
		p.add(row)

		queries := pageQueries[row.Page]
		if queries == nil {
			queries = make(map[string]struct{})
			pageQueries[row.Page] = queries
		}
		queries[row.Query] = struct{}{}

		pages := byQueryPage[row.Query]
		if pages == nil {
			pages = make(map[string]*groupTotals)
			byQueryPage[row.Query] = pages
		}
		qp := pages[row.Page]
		if qp == nil {
			qp = &groupTotals{}
			pages[row.Page] = qp
		}
		qp.add(row)
	}

	queries := make([]QuerySummary, 0, len(byQuery))
	for query, totals := range byQuery {
		if totals.impressions == 0 {
			continue
		}
		queries = append(queries, QuerySummary{
			Query:            query,
			BestPage:         bestPage(byQueryPage[query]),
			TotalClicks:      totals.clicks,
			TotalImpressions: totals.impressions,
			AvgPosition:      totals.avgPosition(),
			CTR:              totals.ctr(),
		})
	}
	sort.Slice(queries, func(i, j int) bool {
		if queries[i].TotalImpressions != queries[j].TotalImpressions {
			return queries[i].TotalImpressions > queries[j].TotalImpressions
		}
		return queries[i].Query < queries[j].Query
	})

	pages := make([]PageSummary, 0, len(byPage))
	for page, totals := range byPage {
		if totals.impressions == 0 {
			continue
		}
		pages = append(pages, PageSummary{
			Page:             page,
			DistinctQueries:  len(pageQueries[page]),
			TotalClicks:      totals.clicks,
			TotalImpressions: totals.impressions,
			AvgPosition:      totals.avgPosition(),
		})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].TotalImpressions != pages[j].TotalImpressions {
			return pages[i].TotalImpressions > pages[j].TotalImpressions
		}
		return pages[i].Page < pages[j].Page
	})

	return queries, pages, nil
}

func validateRow(row MetricRow, propertyID string) error {
	switch {
	case row.PropertyID != propertyID:
		return &DataIntegrityError{PropertyID: row.PropertyID, Query: row.Query, Page: row.Page, Date: row.Date,
			Reason: "row belongs to property " + row.PropertyID + ", expected " + propertyID}
	case row.Clicks < 0:
		return &DataIntegrityError{PropertyID: row.PropertyID, Query: row.Query, Page: row.Page, Date: row.Date,
			Reason: "negative clicks"}
	case row.Impressions < 0:
		return &DataIntegrityError{PropertyID: row.PropertyID, Query: row.Query, Page: row.Page, Date: row.Date,
			Reason: "negative impressions"}
	case row.Clicks > row.Impressions:
		return &DataIntegrityError{PropertyID: row.PropertyID, Query: row.Query, Page: row.Page, Date: row.Date,
			Reason: "clicks exceed impressions"}
	}
	return nil
}

// bestPage picks the page with the highest click total for a query. Ties
// break by lowest weighted position, then lexicographically by URL, so
// the choice is stable across runs.
func bestPage(pages map[string]*groupTotals) string {
	var (
		best       string
		bestTotals *groupTotals
	)
	for page, totals := range pages {
		if totals.impressions == 0 {
			continue
		}
		if bestTotals == nil {
			best, bestTotals = page, totals
			continue
		}
		switch {
		case totals.clicks != bestTotals.clicks:
			if totals.clicks > bestTotals.clicks {
				best, bestTotals = page, totals
			}
		case totals.avgPosition() != bestTotals.avgPosition():
			if totals.avgPosition() < bestTotals.avgPosition() {
				best, bestTotals = page, totals
			}
		case page < best:
			best, bestTotals = page, totals
		}
	}
	return best
}
