package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/searchlighthq/searchlight/internal/analysis"
)

// summaryStatsTTL bounds how stale a cached per-property stats block can get.
const summaryStatsTTL = 5 * time.Minute

// MetricRows returns every stored row for a property inside the window,
// ordered by impressions then clicks so downstream consumers see the
// highest-visibility rows first. This satisfies analysis.Store.
func (d *DB) MetricRows(ctx context.Context, propertyID string, window analysis.Window) ([]analysis.MetricRow, error) {
	return d.FilteredMetricRows(ctx, propertyID, window, RowFilter{})
}

// RowFilter optionally narrows a row fetch to matching queries or pages.
type RowFilter struct {
	QueryContains string
	PageContains  string
}

// FilteredMetricRows is MetricRows with an optional query/page filter.
func (d *DB) FilteredMetricRows(ctx context.Context, propertyID string, window analysis.Window, filter RowFilter) ([]analysis.MetricRow, error) {
	query := `
		SELECT property_id, date, query, page, clicks, impressions, position
		FROM search_metrics
		WHERE property_id = $1 AND date >= $2 AND date <= $3`
	args := []interface{}{propertyID, window.Start, window.End}

	if filter.QueryContains != "" {
		args = append(args, "%"+filter.QueryContains+"%")
		query += fmt.Sprintf(" AND query ILIKE $%d", len(args))
	}
	if filter.PageContains != "" {
		args = append(args, "%"+filter.PageContains+"%")
		query += fmt.Sprintf(" AND page ILIKE $%d", len(args))
	}
	query += " ORDER BY impressions DESC, clicks DESC, query, page"

	rows, err := d.client.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("property_id", propertyID).Msg("Failed to query metric rows")
		return nil, fmt.Errorf("query metric rows: %w", err)
	}
	defer rows.Close()

	var result []analysis.MetricRow
	for rows.Next() {
		var row analysis.MetricRow
		if err := rows.Scan(&row.PropertyID, &row.Date, &row.Query, &row.Page, &row.Clicks, &row.Impressions, &row.Position); err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// UpsertMetricRows lands a batch of freshly synced rows, replacing any
// existing values for the same (property, date, query, page) key. One
// statement per batch via unnest keeps large syncs cheap. Cached
// aggregates for the property are invalidated.
func (d *DB) UpsertMetricRows(ctx context.Context, propertyID string, rows []analysis.MetricRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	dates := make([]time.Time, len(rows))
	queries := make([]string, len(rows))
	pages := make([]string, len(rows))
	clicks := make([]int64, len(rows))
	impressions := make([]int64, len(rows))
	positions := make([]float64, len(rows))
	for i, row := range rows {
		dates[i] = row.Date
		queries[i] = row.Query
		pages[i] = row.Page
		clicks[i] = int64(row.Clicks)
		impressions[i] = int64(row.Impressions)
		positions[i] = row.Position
	}

	result, err := d.client.ExecContext(ctx, `
		INSERT INTO search_metrics (property_id, date, query, page, clicks, impressions, position)
		SELECT $1, d, q, p, c, i, pos
		FROM (
			SELECT
				unnest($2::date[]) AS d,
				unnest($3::text[]) AS q,
				unnest($4::text[]) AS p,
				unnest($5::bigint[]) AS c,
				unnest($6::bigint[]) AS i,
				unnest($7::double precision[]) AS pos
		) AS batch
		ON CONFLICT (property_id, date, query, page)
		DO UPDATE SET
			clicks = EXCLUDED.clicks,
			impressions = EXCLUDED.impressions,
			position = EXCLUDED.position,
			fetched_at = NOW()`,
		propertyID,
		pq.Array(dates),
		pq.Array(queries),
		pq.Array(pages),
		pq.Array(clicks),
		pq.Array(impressions),
		pq.Array(positions),
	)
	if err != nil {
		log.Error().Err(err).Str("property_id", propertyID).Int("rows", len(rows)).Msg("Failed to upsert metric rows")
		return 0, fmt.Errorf("upsert metric rows: %w", err)
	}

	d.Cache.DeletePrefix("stats:" + propertyID)

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// SummaryStats describes a property's footprint inside a window.
type SummaryStats struct {
	TotalQueries     int     `json:"total_queries"`
	TotalPages       int     `json:"total_pages"`
	TotalClicks      int     `json:"total_clicks"`
	TotalImpressions int     `json:"total_impressions"`
	AvgCTR           float64 `json:"avg_ctr"`
	AvgPosition      float64 `json:"avg_position"`
}

// GetSummaryStats returns headline totals for a property and window,
// cached briefly since dashboards poll it far more often than rows land.
func (d *DB) GetSummaryStats(ctx context.Context, propertyID string, window analysis.Window) (*SummaryStats, error) {
	cacheKey := fmt.Sprintf("stats:%s:%s:%s", propertyID, window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
	if cached, found := d.Cache.Get(cacheKey); found {
		if stats, ok := cached.(*SummaryStats); ok {
			return stats, nil
		}
	}

	var stats SummaryStats
	var avgCTR, avgPosition sql.NullFloat64
	err := d.client.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT query),
			COUNT(DISTINCT page),
			COALESCE(SUM(clicks), 0),
			COALESCE(SUM(impressions), 0),
			CASE WHEN SUM(impressions) > 0
				THEN CAST(SUM(clicks) AS FLOAT) / SUM(impressions)
				ELSE NULL
			END,
			CASE WHEN SUM(impressions) > 0
				THEN SUM(position * impressions) / SUM(impressions)
				ELSE NULL
			END
		FROM search_metrics
		WHERE property_id = $1 AND date >= $2 AND date <= $3`,
		propertyID, window.Start, window.End,
	).Scan(&stats.TotalQueries, &stats.TotalPages, &stats.TotalClicks, &stats.TotalImpressions, &avgCTR, &avgPosition)
	if err != nil {
		log.Error().Err(err).Str("property_id", propertyID).Msg("Failed to get summary stats")
		return nil, fmt.Errorf("summary stats: %w", err)
	}

	if avgCTR.Valid {
		stats.AvgCTR = avgCTR.Float64
	}
	if avgPosition.Valid {
		stats.AvgPosition = avgPosition.Float64
	}

	d.Cache.Set(cacheKey, &stats, summaryStatsTTL)
	return &stats, nil
}

// DataDateRange returns the earliest and latest stored dates for a
// property. ok is false when the property has no rows at all.
func (d *DB) DataDateRange(ctx context.Context, propertyID string) (earliest, latest time.Time, ok bool, err error) {
	var minDate, maxDate sql.NullTime
	err = d.client.QueryRowContext(ctx, `
		SELECT MIN(date), MAX(date)
		FROM search_metrics
		WHERE property_id = $1`,
		propertyID,
	).Scan(&minDate, &maxDate)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("data date range: %w", err)
	}

	if !minDate.Valid || !maxDate.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return minDate.Time, maxDate.Time, true, nil
}

// DeleteRowsBefore enforces the caller's retention window by removing
// rows older than the cutoff date. The analysis engine never calls this;
// retention is entirely the store owner's concern.
func (d *DB) DeleteRowsBefore(ctx context.Context, propertyID string, cutoff time.Time) (int64, error) {
	result, err := d.client.ExecContext(ctx, `
		DELETE FROM search_metrics
		WHERE property_id = $1 AND date < $2`,
		propertyID, cutoff,
	)
	if err != nil {
		log.Error().Err(err).Str("property_id", propertyID).Msg("Failed to delete expired rows")
		return 0, fmt.Errorf("delete rows before %s: %w", cutoff.Format("2006-01-02"), err)
	}

	d.Cache.DeletePrefix("stats:" + propertyID)

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		log.Info().
			Str("property_id", propertyID).
			Int64("rows", deleted).
			Time("cutoff", cutoff).
			Msg("Expired rows removed")
	}
	return deleted, nil
}
